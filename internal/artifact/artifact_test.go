package artifact

import (
	"fmt"
	"testing"
)

func pdf(tag string) []byte {
	return []byte("%PDF-1.4\n" + tag)
}

func TestPublishPromote_ReplacesLive(t *testing.T) {
	l := NewLifecycle()

	h1 := l.Publish(pdf("one"), 1)
	if err := l.Promote(h1); err != nil {
		t.Fatalf("promote h1: %v", err)
	}
	if l.Live() != h1 {
		t.Fatal("h1 should be live")
	}

	h2 := l.Publish(pdf("two"), 2)
	// Old handle survives until the new one is promoted.
	if l.Live() != h1 {
		t.Fatal("h1 should stay live until promote")
	}
	if l.AllocatedCount() != 2 {
		t.Fatalf("allocated = %d, want 2 during transition", l.AllocatedCount())
	}

	if err := l.Promote(h2); err != nil {
		t.Fatalf("promote h2: %v", err)
	}
	if l.Live() != h2 {
		t.Fatal("h2 should be live")
	}
	if h1.Bytes() != nil {
		t.Error("h1 should be released")
	}
	if l.AllocatedCount() != 1 {
		t.Errorf("allocated = %d, want 1", l.AllocatedCount())
	}
}

func TestNoLeakLaw(t *testing.T) {
	l := NewLifecycle()
	const n = 10
	for i := 0; i < n; i++ {
		h := l.Publish(pdf(fmt.Sprintf("v%d", i)), uint64(i+1))
		if err := l.Promote(h); err != nil {
			t.Fatalf("promote %d: %v", i, err)
		}
	}
	if l.AllocatedCount() != 1 {
		t.Errorf("allocated = %d, want 1", l.AllocatedCount())
	}
	if l.ReleasedCount() != n-1 {
		t.Errorf("released = %d, want %d", l.ReleasedCount(), n-1)
	}
}

func TestPromote_UnusableKeepsOldLive(t *testing.T) {
	l := NewLifecycle()
	good := l.Publish(pdf("good"), 1)
	if err := l.Promote(good); err != nil {
		t.Fatalf("promote good: %v", err)
	}

	bad := l.Publish([]byte("not a pdf"), 2)
	if err := l.Promote(bad); err == nil {
		t.Fatal("promote of unusable bytes should fail")
	}
	if l.Live() != good {
		t.Error("old artifact should stay live after a failed promote")
	}
	if l.AllocatedCount() != 1 {
		t.Errorf("allocated = %d, want 1 (bad handle released)", l.AllocatedCount())
	}
}

func TestPublishOverPending_ReleasesOrphan(t *testing.T) {
	l := NewLifecycle()
	orphan := l.Publish(pdf("orphan"), 1)
	_ = l.Publish(pdf("next"), 2)
	if orphan.Bytes() != nil {
		t.Error("unpromoted handle should be released by next publish")
	}
	if l.AllocatedCount() != 1 {
		t.Errorf("allocated = %d, want 1", l.AllocatedCount())
	}
}

func TestGet(t *testing.T) {
	l := NewLifecycle()
	h := l.Publish(pdf("x"), 1)
	if err := l.Promote(h); err != nil {
		t.Fatal(err)
	}
	got, ok := l.Get(h.ID())
	if !ok || got != h {
		t.Error("Get should find the live handle by id")
	}
	if _, ok := l.Get("missing"); ok {
		t.Error("Get of unknown id should fail")
	}
}

func TestReleaseAll_Idempotent(t *testing.T) {
	l := NewLifecycle()
	h := l.Publish(pdf("x"), 1)
	if err := l.Promote(h); err != nil {
		t.Fatal(err)
	}

	l.ReleaseAll()
	if l.Live() != nil {
		t.Error("no handle should be live after ReleaseAll")
	}
	if l.AllocatedCount() != 0 {
		t.Errorf("allocated = %d, want 0", l.AllocatedCount())
	}

	// Second call must be safe.
	l.ReleaseAll()
	if l.ReleasedCount() != 1 {
		t.Errorf("released = %d, want 1 (no double release)", l.ReleasedCount())
	}
}

func TestServeWhilePromoting(t *testing.T) {
	// Reading the live artifact must be safe against a concurrent
	// publish/promote cycle releasing the handle underneath it.
	// Run with -race.
	l := NewLifecycle()
	seed := l.Publish(pdf("seed"), 1)
	if err := l.Promote(seed); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if h := l.Live(); h != nil {
				_ = h.Bytes()
			}
		}
	}()

	for i := 2; i < 1000; i++ {
		h := l.Publish(pdf(fmt.Sprintf("v%d", i)), uint64(i))
		if err := l.Promote(h); err != nil {
			t.Fatalf("promote %d: %v", i, err)
		}
	}
	<-done

	if l.AllocatedCount() != 1 {
		t.Errorf("allocated = %d, want 1", l.AllocatedCount())
	}
}

func TestPromote_AfterReleaseFails(t *testing.T) {
	l := NewLifecycle()
	h := l.Publish(pdf("x"), 1)
	l.ReleaseAll()
	if err := l.Promote(h); err == nil {
		t.Error("promote of a released handle should fail")
	}
}
