// Package ocrtest provides a scriptable in-memory OCR engine for tests.
package ocrtest

import (
	"context"
	"errors"
	"sync"

	"github.com/joseph-ayodele/scansmart/internal/ocr"
)

// Stage names used for fault injection.
const (
	StageCreate     = "create"
	StageLoad       = "load_language"
	StageInitialize = "initialize"
	StageRecognize  = "recognize"
)

var ErrInjected = errors.New("injected ocr failure")

// Factory hands out fake workers and counts their lifecycle calls.
type Factory struct {
	mu sync.Mutex
	// Texts maps an image path to the text Recognize returns. Missing paths return Default.
	Texts   map[string]string
	Default string
	// FailAt makes the named stage fail with ErrInjected.
	FailAt string
	// PanicAt makes the named stage panic.
	PanicAt string
	// Gates blocks Recognize for a path until the channel is closed or the context ends.
	Gates map[string]chan struct{}

	created    int
	terminated int
	recognized []string
	calls      []string
}

func NewFactory() *Factory {
	return &Factory{Texts: make(map[string]string), Gates: make(map[string]chan struct{})}
}

func (f *Factory) Name() string { return "fake" }

func (f *Factory) NewWorker(context.Context) (ocr.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, StageCreate)
	if f.FailAt == StageCreate {
		return nil, ErrInjected
	}
	f.created++
	return &worker{f: f}, nil
}

// Gate registers and returns a channel that holds Recognize for path until closed.
func (f *Factory) Gate(path string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.Gates[path] = ch
	return ch
}

func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

func (f *Factory) Terminated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminated
}

// Recognized lists the paths passed to Recognize, in call order.
func (f *Factory) Recognized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.recognized...)
}

// Calls lists lifecycle calls across all workers, in order.
func (f *Factory) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Factory) step(stage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stage)
	if f.PanicAt == stage {
		panic("ocrtest: injected panic at " + stage)
	}
	if f.FailAt == stage {
		return ErrInjected
	}
	return nil
}

type worker struct {
	f    *Factory
	lang string
}

func (w *worker) LoadLanguage(_ context.Context, code string) error {
	if err := w.f.step(StageLoad); err != nil {
		return err
	}
	w.lang = code
	return nil
}

func (w *worker) Initialize(_ context.Context, code string) error {
	if err := w.f.step(StageInitialize); err != nil {
		return err
	}
	if code != w.lang {
		return ocr.ErrLanguageMismatch
	}
	return nil
}

func (w *worker) Recognize(ctx context.Context, path string) (ocr.Recognition, error) {
	w.f.mu.Lock()
	w.f.recognized = append(w.f.recognized, path)
	gate := w.f.Gates[path]
	w.f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ocr.Recognition{}, ctx.Err()
		}
	}
	if err := w.f.step(StageRecognize); err != nil {
		return ocr.Recognition{}, err
	}

	w.f.mu.Lock()
	text, ok := w.f.Texts[path]
	if !ok {
		text = w.f.Default
	}
	w.f.mu.Unlock()
	return ocr.Recognition{Text: text, Language: w.lang, Engine: "fake", Confidence: 0.9}, nil
}

func (w *worker) Terminate() error {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	w.f.calls = append(w.f.calls, "terminate")
	w.f.terminated++
	return nil
}
