// Package ocr shells out to tesseract behind a stubbable command runner.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Engine turns image bytes into recognized text.
type Engine interface {
	Recognize(ctx context.Context, data []byte) (string, error)
}

// Runner lets tests stub the external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		slog.Error("exec failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		)
	} else {
		slog.Debug("exec ok",
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
		)
	}

	return out.Bytes(), errb.Bytes(), err
}

type Tesseract struct {
	binary string
	langs  string
	runner Runner
}

func NewTesseract(binary, langs string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if langs == "" {
		langs = "eng"
	}
	return &Tesseract{binary: binary, langs: langs, runner: execRunner{}}
}

// WithRunner swaps the command runner; used by tests.
func (t *Tesseract) WithRunner(r Runner) *Tesseract {
	t.runner = r
	return t
}

// Recognize writes the image to a scratch file and runs
// `tesseract <file> stdout -l <langs>`. The stderr tail rides the error so
// failures stay diagnosable without raw OCR logs.
func (t *Tesseract) Recognize(ctx context.Context, data []byte) (string, error) {
	scratch, err := os.CreateTemp("", "doctriage-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := scratch.Name()
	defer os.Remove(path)

	if _, err := scratch.Write(data); err != nil {
		scratch.Close()
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return "", fmt.Errorf("close scratch file: %w", err)
	}

	out, errb, err := t.runner.Run(ctx, t.binary, filepath.Clean(path), "stdout", "-l", t.langs)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return string(out), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
