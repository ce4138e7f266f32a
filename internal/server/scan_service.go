package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/scansmart/internal/acquire"
	"github.com/joseph-ayodele/scansmart/internal/common"
	"github.com/joseph-ayodele/scansmart/internal/export"
	"github.com/joseph-ayodele/scansmart/internal/scan"
)

const scanServiceName = "scansmart.v1.ScanService"

// Scanner is the session the service drives.
type Scanner interface {
	TakePhoto(ctx context.Context) (acquire.CaptureResult, error)
	PickImage(ctx context.Context, selection string) (acquire.CaptureResult, error)
	Export(ctx context.Context) (export.Artifact, error)
	State() scan.State
	Wait(ctx context.Context) error
}

// ScanServiceServer is the server API for scansmart.v1.ScanService. Messages
// are google.protobuf.Struct values validated against per-method JSON schemas.
type ScanServiceServer interface {
	TakePhoto(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PickImage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Export(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type scanCall func(ScanServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call scanCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ScanServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + scanServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ScanServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ScanServiceDesc = grpc.ServiceDesc{
	ServiceName: scanServiceName,
	HandlerType: (*ScanServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("TakePhoto", ScanServiceServer.TakePhoto),
		unaryHandler("PickImage", ScanServiceServer.PickImage),
		unaryHandler("GetState", ScanServiceServer.GetState),
		unaryHandler("Export", ScanServiceServer.Export),
	},
	// no file descriptor is registered for this service, so reflection only lists it
	Streams: []grpc.StreamDesc{},
}

func RegisterScanServiceServer(s grpc.ServiceRegistrar, srv ScanServiceServer) {
	s.RegisterService(&ScanServiceDesc, srv)
}

// ScanClient calls scansmart.v1.ScanService.
type ScanClient struct {
	cc grpc.ClientConnInterface
}

func NewScanClient(cc grpc.ClientConnInterface) *ScanClient {
	return &ScanClient{cc: cc}
}

func (c *ScanClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+scanServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type ScanServer struct {
	scanner   Scanner
	validator *requestValidator
	logger    *slog.Logger
}

func NewScanServer(scanner Scanner, logger *slog.Logger) (*ScanServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &ScanServer{scanner: scanner, validator: v, logger: logger}, nil
}

func (s *ScanServer) TakePhoto(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.validator.validate("TakePhoto", req); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	res, err := s.scanner.TakePhoto(ctx)
	return s.acquisitionResponse(ctx, "TakePhoto", req, res, err)
}

func (s *ScanServer) PickImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.validator.validate("PickImage", req); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	res, err := s.scanner.PickImage(ctx, req.GetFields()["selection"].GetStringValue())
	return s.acquisitionResponse(ctx, "PickImage", req, res, err)
}

func (s *ScanServer) GetState(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.validator.validate("GetState", req); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	return toStruct(map[string]any{"state": StateMap(s.scanner.State())})
}

func (s *ScanServer) Export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.validator.validate("Export", req); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	a, err := s.scanner.Export(ctx)
	if err != nil {
		s.logger.Warn("export failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{
		"artifact": map[string]any{
			"id":         a.ID.String(),
			"path":       a.Path,
			"file_type":  a.Descriptor.FileType,
			"mime_type":  a.Descriptor.MIMEType,
			"size":       a.Size,
			"created_at": a.CreatedAt.Format(time.RFC3339Nano),
		},
	})
}

func (s *ScanServer) acquisitionResponse(ctx context.Context, method string, req *structpb.Struct, res acquire.CaptureResult, err error) (*structpb.Struct, error) {
	if err != nil {
		s.logger.Info("acquisition refused", "method", method, "error", err)
		return nil, common.ToStatus(err)
	}
	if req.GetFields()["wait"].GetBoolValue() && !res.Cancelled() {
		if err := s.scanner.Wait(ctx); err != nil {
			return nil, status.FromContextError(err).Err()
		}
	}
	return toStruct(map[string]any{
		"outcome": string(res.Outcome),
		"state":   StateMap(s.scanner.State()),
	})
}

// StateMap is the wire form of the displayed state.
func StateMap(st scan.State) map[string]any {
	m := map[string]any{
		"status":  string(st.Status),
		"text":    st.Text,
		"run_id":  st.RunID,
		"notice":  st.Notice,
		"version": st.Version,
	}
	if !st.Image.IsZero() {
		m["image"] = map[string]any{
			"path":   st.Image.Path,
			"source": string(st.Image.Source),
			"format": st.Image.Format,
			"hash":   st.Image.Hash,
			"width":  st.Image.Width,
			"height": st.Image.Height,
		}
	}
	return m
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
