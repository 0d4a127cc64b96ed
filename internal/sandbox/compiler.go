// Package sandbox compiles LaTeX source into PDF bytes inside an isolated,
// resource-capped environment.
//
// Each compilation gets a fresh working directory that is removed on every
// exit path. The compiler never sees the network, the caller's environment or
// any file outside that directory beyond the TeX distribution itself.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cvix/internal/generr"
	"cvix/internal/pdfinfo"
)

// Compiler turns LaTeX source into PDF bytes.
type Compiler interface {
	Compile(ctx context.Context, source string) ([]byte, error)
}

const (
	sourceName = "main.tex"
	outputName = "main.pdf"
	logName    = "main.log"

	// consoleLimit caps how much compiler stdout/stderr is retained.
	consoleLimit = 64 << 10
	// waitDelay bounds how long Wait blocks on inherited pipes after a kill.
	waitDelay = 500 * time.Millisecond
)

// Limits are the resource ceilings applied to one compilation.
type Limits struct {
	MemoryMB     int
	CPUSeconds   int
	MaxOutputMB  int
	MaxProcesses int
}

func (l Limits) maxOutputBytes() int64 {
	if l.MaxOutputMB <= 0 {
		return 20 << 20
	}
	return int64(l.MaxOutputMB) << 20
}

// workspace is the request-scoped directory a compilation runs in.
type workspace struct {
	dir string
}

func newWorkspace(root string) (*workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir, err := os.MkdirTemp(root, "cvix-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &workspace{dir: dir}, nil
}

func (w *workspace) writeSource(source string) error {
	return os.WriteFile(filepath.Join(w.dir, sourceName), []byte(source), 0o600)
}

func (w *workspace) remove() {
	_ = os.RemoveAll(w.dir)
}

// readOutput loads main.pdf after a successful run and checks it is a PDF
// no larger than max.
func (w *workspace) readOutput(max int64) ([]byte, error) {
	fail := func(msg string, err error) error {
		return generr.Compilation(msg, "", err).WithOp("sandbox.output")
	}

	path := filepath.Join(w.dir, outputName)
	info, err := os.Lstat(path)
	if err != nil {
		return nil, generr.Compilation("compiler produced no output", w.logExcerpt(nil), err).WithOp("sandbox.output")
	}
	if !info.Mode().IsRegular() {
		return nil, fail("compiler output is not a regular file", nil)
	}
	if info.Size() > max {
		return nil, fail(fmt.Sprintf("compiler output exceeds %d bytes", max), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fail("open compiler output", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fail("read compiler output", err)
	}
	if int64(len(data)) > max {
		return nil, fail(fmt.Sprintf("compiler output exceeds %d bytes", max), nil)
	}
	if !pdfinfo.IsPDF(data) {
		return nil, fail("compiler output is not a PDF", pdfinfo.ErrNotPDF)
	}
	return data, nil
}

// logExcerpt prefers the TeX log file and falls back to console output.
func (w *workspace) logExcerpt(console []byte) string {
	if raw, err := os.ReadFile(filepath.Join(w.dir, logName)); err == nil {
		if ex := LogExcerpt(raw); ex != "" {
			return ex
		}
	}
	return LogExcerpt(console)
}

// classify turns the outcome of a finished run into the error taxonomy.
// parent is the caller's context and run the one bounded by the compile timeout.
func classify(parent, run context.Context, runErr error, console []byte, ws *workspace) error {
	if run.Err() != nil {
		if errors.Is(parent.Err(), context.Canceled) {
			return generr.Canceled(parent.Err()).WithOp("sandbox.compile")
		}
		return generr.Timeout("compilation exceeded its time limit", run.Err()).WithOp("sandbox.compile")
	}
	if runErr == nil {
		return nil
	}

	code := -1
	var exitErr interface{ ExitCode() int }
	if errors.As(runErr, &exitErr) {
		code = exitErr.ExitCode()
	}
	return generr.Compilation(
		fmt.Sprintf("compiler exited with code %d", code),
		ws.logExcerpt(console),
		runErr,
	).WithOp("sandbox.compile")
}

// boundedBuffer keeps the first limit bytes written to it and drops the rest.
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) Bytes() []byte { return b.buf.Bytes() }
