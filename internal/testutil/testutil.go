// Package testutil provides shared test helpers for setting up document
// stores and controllable compiler doubles.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/halvar/vellum/internal/docstore"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *docstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vellum-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := docstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// PDFBytes returns bytes that pass the artifact usability sniff, tagged
// so tests can tell artifacts apart.
func PDFBytes(tag string) []byte {
	return []byte("%PDF-1.4\n" + tag)
}

type fakeOutcome struct {
	data []byte
	err  error
}

// FakeRequest is one in-flight call into a FakeCompiler. The test
// decides when and how it completes, which makes out-of-order
// completion timing trivial to inject.
type FakeRequest struct {
	Source string
	resp   chan fakeOutcome
}

// Succeed completes the request with the given artifact bytes.
func (r *FakeRequest) Succeed(data []byte) {
	r.resp <- fakeOutcome{data: data}
}

// Fail completes the request with err.
func (r *FakeRequest) Fail(err error) {
	r.resp <- fakeOutcome{err: err}
}

// FakeCompiler implements compiler.Service with test-controlled
// completion. Each Compile call publishes a FakeRequest on Requests and
// blocks until the test resolves it.
type FakeCompiler struct {
	Requests chan *FakeRequest
}

// NewFakeCompiler creates a FakeCompiler with room for buffered requests.
func NewFakeCompiler() *FakeCompiler {
	return &FakeCompiler{Requests: make(chan *FakeRequest, 32)}
}

// Compile implements compiler.Service.
func (f *FakeCompiler) Compile(ctx context.Context, source string) ([]byte, error) {
	req := &FakeRequest{Source: source, resp: make(chan fakeOutcome, 1)}
	f.Requests <- req
	select {
	case out := <-req.resp:
		return out.data, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
