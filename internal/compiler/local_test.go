package compiler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// stubBinary writes an executable shell script standing in for the
// LaTeX toolchain. It runs with the scratch job dir as cwd.
func stubBinary(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fakelatex")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newLocal(t *testing.T, binary string, timeout time.Duration) (*Local, string) {
	t.Helper()
	scratch := t.TempDir()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	l, err := NewLocal(binary, scratch, timeout, logger)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return l, scratch
}

func assertScratchEmpty(t *testing.T, scratch string) {
	t.Helper()
	entries, err := os.ReadDir(scratch)
	if err != nil {
		t.Fatalf("read scratch root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir not cleaned up: %d entries remain", len(entries))
	}
}

func TestLocal_Success(t *testing.T) {
	bin := stubBinary(t, `printf '%%PDF-1.4 fake artifact' > main.pdf`)
	l, scratch := newLocal(t, bin, 0)

	artifact, err := l.Compile(context.Background(), `\documentclass{article}\begin{document}hi\end{document}`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.HasPrefix(string(artifact), "%PDF-") {
		t.Errorf("artifact = %q", artifact)
	}
	assertScratchEmpty(t, scratch)
}

func TestLocal_CompilationError(t *testing.T) {
	bin := stubBinary(t, `echo 'l.1 Undefined control sequence'; exit 1`)
	l, scratch := newLocal(t, bin, 0)

	_, err := l.Compile(context.Background(), `\badmacro`)
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("want *Error, got %v", err)
	}
	if ce.Kind != CompilationError {
		t.Errorf("kind = %s, want %s", ce.Kind, CompilationError)
	}
	if !strings.Contains(ce.Diagnostic, "Undefined control sequence") {
		t.Errorf("diagnostic = %q, should carry the tool's error stream", ce.Diagnostic)
	}
	assertScratchEmpty(t, scratch)
}

func TestLocal_OutputMissing(t *testing.T) {
	bin := stubBinary(t, `exit 0`)
	l, scratch := newLocal(t, bin, 0)

	_, err := l.Compile(context.Background(), `\documentclass{article}`)
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("want *Error, got %v", err)
	}
	if ce.Kind != OutputMissing {
		t.Errorf("kind = %s, want %s", ce.Kind, OutputMissing)
	}
	assertScratchEmpty(t, scratch)
}

func TestLocal_BinaryMissing(t *testing.T) {
	l, scratch := newLocal(t, "/nonexistent/latex-binary", 0)

	_, err := l.Compile(context.Background(), "content")
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("want *Error, got %v", err)
	}
	if ce.Kind != ProcessLaunchFailure {
		t.Errorf("kind = %s, want %s", ce.Kind, ProcessLaunchFailure)
	}
	assertScratchEmpty(t, scratch)
}

func TestLocal_Timeout(t *testing.T) {
	bin := stubBinary(t, `sleep 5`)
	l, scratch := newLocal(t, bin, 100*time.Millisecond)

	start := time.Now()
	_, err := l.Compile(context.Background(), "content")
	if time.Since(start) > 3*time.Second {
		t.Fatal("timeout did not take effect")
	}
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("want *Error, got %v", err)
	}
	if ce.Kind != ProcessLaunchFailure {
		t.Errorf("kind = %s, want %s", ce.Kind, ProcessLaunchFailure)
	}
	assertScratchEmpty(t, scratch)
}

func TestLocal_EmptySourceRejected(t *testing.T) {
	bin := stubBinary(t, `echo should-not-run; exit 0`)
	l, scratch := newLocal(t, bin, 0)

	_, err := l.Compile(context.Background(), "   \n\t")
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("want *Error, got %v", err)
	}
	if ce.Kind != CompilationError {
		t.Errorf("kind = %s", ce.Kind)
	}
	assertScratchEmpty(t, scratch)
}

func TestLocal_ConcurrentIsolation(t *testing.T) {
	// Each invocation writes its own pid; isolated scratch dirs must not
	// cross-contaminate artifacts.
	bin := stubBinary(t, `printf '%%PDF-1.4 %s' "$$" > main.pdf`)
	l, scratch := newLocal(t, bin, 0)

	const n = 4
	results := make(chan []byte, n)
	for i := 0; i < n; i++ {
		go func() {
			out, err := l.Compile(context.Background(), "source")
			if err != nil {
				results <- nil
				return
			}
			results <- out
		}()
	}
	for i := 0; i < n; i++ {
		if out := <-results; out == nil {
			t.Fatal("concurrent compile failed")
		}
	}
	assertScratchEmpty(t, scratch)
}

func TestAsError_WrapsUnknown(t *testing.T) {
	plain := errors.New("boom")
	ce := AsError(plain)
	if ce.Kind != ProcessLaunchFailure {
		t.Errorf("kind = %s", ce.Kind)
	}
	if !errors.Is(ce, plain) {
		t.Error("wrapped error should unwrap to the original")
	}
}
