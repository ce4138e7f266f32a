package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/scansmart/internal/runner"
)

type CLIConfig struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TessdataDir         string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// CLIFactory creates workers that shell out to the tesseract binary.
type CLIFactory struct {
	cfg    CLIConfig
	runner runner.Runner
	logger *slog.Logger
}

func NewCLIFactory(cfg CLIConfig, r runner.Runner, logger *slog.Logger) *CLIFactory {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if r == nil {
		r = runner.Exec{Logger: logger}
	}
	return &CLIFactory{cfg: cfg, runner: r, logger: logger}
}

func (f *CLIFactory) Name() string { return "tesseract-cli" }

func (f *CLIFactory) NewWorker(_ context.Context) (Worker, error) {
	return &cliWorker{cfg: f.cfg, runner: f.runner, logger: f.logger}, nil
}

type cliWorker struct {
	cfg    CLIConfig
	runner runner.Runner
	logger *slog.Logger
	state  lifecycle
}

// LoadLanguage checks that trained data for code is installed.
func (w *cliWorker) LoadLanguage(ctx context.Context, code string) error {
	args := []string{"--list-langs"}
	if w.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", w.cfg.TessdataDir)
	}
	out, errb, err := w.runner.Run(ctx, w.cfg.Tesseract, args...)
	if err != nil {
		return fmt.Errorf("tesseract list-langs: %w", err)
	}
	// older tesseract builds print the list on stderr
	if !hasLanguage(out, code) && !hasLanguage(errb, code) {
		return fmt.Errorf("%w: %q", ErrLanguageMissing, code)
	}
	return w.state.load(code)
}

func (w *cliWorker) Initialize(_ context.Context, code string) error {
	return w.state.init(code)
}

func (w *cliWorker) Recognize(ctx context.Context, path string) (Recognition, error) {
	if err := w.state.ready(); err != nil {
		return Recognition{}, err
	}
	start := time.Now()
	lang := w.state.initialized

	// tesseract <file> stdout -l <lang>
	out, errb, err := w.runner.Run(ctx, w.cfg.Tesseract, w.args(path, lang)...)
	if err != nil {
		return Recognition{Warnings: []string{runner.Truncate(string(errb), 1<<10)}}, fmt.Errorf("tesseract: %w", err)
	}
	txt := Normalize(string(out))

	var warns []string
	var engineConf float32
	if w.cfg.EnableTSVConfidence {
		c, err := w.tsvConfidence(ctx, path, lang)
		if err != nil {
			warns = append(warns, err.Error())
		} else {
			engineConf = c
		}
	}

	return Recognition{
		Text:       txt,
		Language:   lang,
		Engine:     "tesseract-cli",
		Confidence: blendConfidence(engineConf, heuristicConfidence(txt)),
		Duration:   time.Since(start),
		Warnings:   warns,
	}, nil
}

// Terminate releases the worker. The CLI keeps no process between calls, so this only closes the lifecycle.
func (w *cliWorker) Terminate() error {
	if w.state.terminated {
		return ErrTerminated
	}
	w.state.terminated = true
	return nil
}

func (w *cliWorker) args(path, lang string) []string {
	args := []string{path, "stdout", "-l", lang}
	if w.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(w.cfg.PSM))
	}
	if w.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(w.cfg.OEM))
	}
	if w.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", w.cfg.TessdataDir)
	}
	return args
}

// tsvConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (w *cliWorker) tsvConfidence(ctx context.Context, path, lang string) (float32, error) {
	args := append(w.args(path, lang), "tsv")
	out, _, err := w.runner.Run(ctx, w.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	return meanTSVConfidence(string(out)), nil
}

func meanTSVConfidence(tsv string) float32 {
	lines := strings.Split(tsv, "\n")
	// conf column is the 11th of 12; header line includes "conf"
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}

func hasLanguage(listing []byte, code string) bool {
	sc := bufio.NewScanner(bytes.NewReader(listing))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == code {
			return true
		}
	}
	return false
}
