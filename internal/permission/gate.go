// Package permission decides whether the camera or the gallery may be used.
package permission

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

type Kind string

const (
	Camera  Kind = "CAMERA"
	Gallery Kind = "GALLERY"
)

type Decision string

const (
	Granted Decision = "GRANTED"
	Denied  Decision = "DENIED"
)

// Gate is asked before every acquisition. A denial is never retried automatically.
type Gate interface {
	RequestAccess(ctx context.Context, kind Kind) (Decision, error)
}

// Policy values accepted from configuration.
const (
	PolicyGranted = "granted"
	PolicyDenied  = "denied"
	PolicyPrompt  = "prompt"
)

// PolicyGate answers from static per-kind policies and defers "prompt" to a fallback gate.
type PolicyGate struct {
	policies map[Kind]string
	prompt   Gate
	logger   *slog.Logger
}

func NewPolicyGate(camera, gallery string, prompt Gate, logger *slog.Logger) *PolicyGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &PolicyGate{
		policies: map[Kind]string{Camera: camera, Gallery: gallery},
		prompt:   prompt,
		logger:   logger,
	}
}

func (g *PolicyGate) RequestAccess(ctx context.Context, kind Kind) (Decision, error) {
	switch p := g.policies[kind]; p {
	case PolicyGranted:
		return Granted, nil
	case PolicyDenied:
		g.logger.Info("access denied by policy", "kind", kind)
		return Denied, nil
	case PolicyPrompt:
		if g.prompt == nil {
			return Denied, nil
		}
		return g.prompt.RequestAccess(ctx, kind)
	default:
		return Denied, fmt.Errorf("unknown access policy %q for %s", p, kind)
	}
}

// PromptGate asks the user on a terminal. A grant is remembered for the
// process lifetime; a denial is asked again next time.
type PromptGate struct {
	in  *bufio.Reader
	out io.Writer

	mu      sync.Mutex
	granted map[Kind]bool
}

func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	return &PromptGate{in: bufio.NewReader(in), out: out, granted: make(map[Kind]bool)}
}

func (g *PromptGate) RequestAccess(ctx context.Context, kind Kind) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.granted[kind] {
		return Granted, nil
	}
	if err := ctx.Err(); err != nil {
		return Denied, err
	}
	if _, err := fmt.Fprintf(g.out, "Allow ScanSmart to access the %s? [y/N] ", strings.ToLower(string(kind))); err != nil {
		return Denied, err
	}
	line, err := g.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return Denied, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		g.granted[kind] = true
		return Granted, nil
	default:
		return Denied, nil
	}
}

// Static always returns the same decision. Useful for servers and tests.
type Static Decision

func (s Static) RequestAccess(context.Context, Kind) (Decision, error) {
	return Decision(s), nil
}
