// Package ocr holds the OCR engine contract and the tesseract command-line engine.
//
// An engine instance is a Worker. It must be driven in order:
// LoadLanguage, Initialize, Recognize, and Terminate, which is required on
// every path including failures.
package ocr

import (
	"context"
	"errors"
	"time"
)

// Recognition is what one Recognize call produces.
type Recognition struct {
	Text       string
	Language   string
	Engine     string
	Confidence float32 // 0..1
	Duration   time.Duration
	Warnings   []string
}

// Worker is a single OCR engine instance. Workers are not shared between runs.
type Worker interface {
	LoadLanguage(ctx context.Context, code string) error
	Initialize(ctx context.Context, code string) error
	Recognize(ctx context.Context, path string) (Recognition, error)
	Terminate() error
}

// WorkerFactory creates fresh Worker instances.
type WorkerFactory interface {
	Name() string
	NewWorker(ctx context.Context) (Worker, error)
}

var (
	ErrNotInitialized   = errors.New("ocr worker not initialized")
	ErrTerminated       = errors.New("ocr worker terminated")
	ErrLanguageMismatch = errors.New("initialize language differs from loaded language")
	ErrLanguageMissing  = errors.New("language data not installed")
)

// lifecycle tracks the ordering contract shared by worker implementations.
type lifecycle struct {
	loaded      string
	initialized string
	terminated  bool
}

func (l *lifecycle) load(code string) error {
	if l.terminated {
		return ErrTerminated
	}
	l.loaded = code
	return nil
}

func (l *lifecycle) init(code string) error {
	if l.terminated {
		return ErrTerminated
	}
	if l.loaded == "" || l.loaded != code {
		return ErrLanguageMismatch
	}
	l.initialized = code
	return nil
}

func (l *lifecycle) ready() error {
	if l.terminated {
		return ErrTerminated
	}
	if l.initialized == "" {
		return ErrNotInitialized
	}
	return nil
}
