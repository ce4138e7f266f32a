package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/scansmart/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scan session over gRPC with an HTTP status endpoint",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	// a daemon has no terminal to prompt on
	a, err := appWithoutPrompt(ctx)
	if err != nil {
		return err
	}

	grpcServer, err := server.NewGRPCServer(a.Session, logger)
	if err != nil {
		a.Close(context.Background())
		return err
	}
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		a.Close(context.Background())
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPHandler(a.Session, a.Scans, a.Registry, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		logger.Info("scansmart gRPC listening", "addr", cfg.Server.GRPCAddr)
		errs <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Info("scansmart HTTP listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errs:
		logger.Error("server stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	grpcServer.GracefulStop()
	if herr := httpServer.Shutdown(shutdownCtx); herr != nil {
		logger.Warn("http shutdown", "error", herr)
	}
	a.Close(shutdownCtx)
	return err
}
