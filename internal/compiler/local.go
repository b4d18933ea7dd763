package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	sourceFile   = "main.tex"
	artifactFile = "main.pdf"
)

// Local runs a pdflatex-compatible binary in a per-request scratch
// directory. The directory is uniquely named, holds the single source
// file, and is removed with all side files (logs, aux) on every exit
// path.
type Local struct {
	binary      string
	args        []string
	scratchRoot string
	timeout     time.Duration
	logger      *slog.Logger
}

// NewLocal creates a Local compiler. timeout of 0 disables the
// wall-clock limit. The scratch root is created if missing.
func NewLocal(binary, scratchRoot string, timeout time.Duration, logger *slog.Logger) (*Local, error) {
	if err := os.MkdirAll(scratchRoot, 0o755); err != nil {
		return nil, fmt.Errorf("compiler: create scratch root: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		binary:      binary,
		args:        []string{"-interaction=nonstopmode", "-halt-on-error"},
		scratchRoot: scratchRoot,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// Compile writes source to a scratch dir, invokes the external binary,
// and returns the artifact bytes or a classified *Error.
func (l *Local) Compile(ctx context.Context, source string) ([]byte, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &Error{Kind: CompilationError, Diagnostic: "empty source"}
	}

	dir := filepath.Join(l.scratchRoot, "job-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &Error{Kind: ProcessLaunchFailure, Err: fmt.Errorf("create scratch dir: %w", err)}
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			l.logger.Warn("compiler: scratch cleanup failed",
				slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}()

	if err := os.WriteFile(filepath.Join(dir, sourceFile), []byte(source), 0o600); err != nil {
		return nil, &Error{Kind: ProcessLaunchFailure, Err: fmt.Errorf("write source: %w", err)}
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, l.binary, append(l.args, sourceFile)...)
	cmd.Dir = dir
	out, runErr := cmd.CombinedOutput()

	if runErr != nil {
		if ctx.Err() != nil {
			return nil, &Error{Kind: ProcessLaunchFailure, Diagnostic: string(out),
				Err: fmt.Errorf("compile cut off: %w", ctx.Err())}
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return nil, &Error{Kind: CompilationError, Diagnostic: string(out), Err: runErr}
		}
		return nil, &Error{Kind: ProcessLaunchFailure, Err: runErr}
	}

	artifact, readErr := os.ReadFile(filepath.Join(dir, artifactFile))
	if readErr != nil {
		return nil, &Error{Kind: OutputMissing, Diagnostic: string(out),
			Err: fmt.Errorf("no artifact at %s: %w", artifactFile, readErr)}
	}

	l.logger.Debug("compiler: compiled",
		slog.Int("source_bytes", len(source)),
		slog.Int("artifact_bytes", len(artifact)))
	return artifact, nil
}
