package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/halvar/vellum/internal/orchestrator"
	"github.com/halvar/vellum/internal/testutil"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) record(kind, path string) {
	l.mu.Lock()
	l.events = append(l.events, kind+":"+path)
	l.mu.Unlock()
}

func (l *eventLog) has(want string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e == want {
			return true
		}
	}
	return false
}

// watchEnv starts a watcher on a temp dir backed by a fake compiler.
func watchEnv(t *testing.T) (string, *testutil.FakeCompiler, *eventLog) {
	t.Helper()
	root := t.TempDir()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	fake := testutil.NewFakeCompiler()
	mgr := orchestrator.NewManager(fake, nil, 20*time.Millisecond, logger, nil)
	t.Cleanup(mgr.CloseAll)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := &eventLog{}
	go func() { _ = Watch(ctx, mgr, root, logger, log.record) }()
	time.Sleep(100 * time.Millisecond)
	return root, fake, log
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_NewFileOpensSessionAndCompiles(t *testing.T) {
	root, fake, log := watchEnv(t)

	_ = os.WriteFile(filepath.Join(root, "paper.tex"), []byte(`\documentclass{article}`), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("opened:paper.tex")
	}, "expected opened:paper.tex callback")

	select {
	case req := <-fake.Requests:
		if req.Source != `\documentclass{article}` {
			t.Errorf("compile source = %q", req.Source)
		}
		req.Succeed(testutil.PDFBytes("paper"))
	case <-time.After(5 * time.Second):
		t.Fatal("no compile triggered by new file")
	}
}

func TestWatch_WriteFeedsEdit(t *testing.T) {
	root, fake, log := watchEnv(t)

	path := filepath.Join(root, "doc.tex")
	_ = os.WriteFile(path, []byte("v1"), 0o644)
	req := <-fake.Requests
	req.Succeed(testutil.PDFBytes("v1"))

	_ = os.WriteFile(path, []byte("v2"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("edited:doc.tex")
	}, "expected edited:doc.tex callback")

	select {
	case req := <-fake.Requests:
		if req.Source != "v2" {
			t.Errorf("compile source = %q, want v2", req.Source)
		}
		req.Succeed(testutil.PDFBytes("v2"))
	case <-time.After(5 * time.Second):
		t.Fatal("no recompile after write")
	}
}

func TestWatch_NewDirWatched(t *testing.T) {
	root, fake, _ := watchEnv(t)

	subDir := filepath.Join(root, "chapters")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "intro.tex"), []byte("deep"), 0o644)

	select {
	case req := <-fake.Requests:
		if req.Source != "deep" {
			t.Errorf("compile source = %q", req.Source)
		}
		req.Succeed(testutil.PDFBytes("deep"))
	case <-time.After(5 * time.Second):
		t.Fatal("file in new subdir not picked up")
	}
}

func TestWatch_RemoveClosesSession(t *testing.T) {
	root, fake, log := watchEnv(t)

	path := filepath.Join(root, "gone.tex")
	_ = os.WriteFile(path, []byte("x"), 0o644)
	req := <-fake.Requests
	req.Succeed(testutil.PDFBytes("x"))

	_ = os.Remove(path)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return log.has("closed:gone.tex")
	}, "expected closed:gone.tex callback")
}

func TestWatch_IgnoresOtherExtensions(t *testing.T) {
	root, fake, log := watchEnv(t)

	_ = os.WriteFile(filepath.Join(root, "notes.md"), []byte("# md"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "main.aux"), []byte("aux"), 0o644)

	select {
	case req := <-fake.Requests:
		t.Fatalf("compile triggered for non-tex file: %q", req.Source)
	case <-time.After(200 * time.Millisecond):
	}
	if log.has("opened:notes.md") {
		t.Error("session opened for non-tex file")
	}
}
