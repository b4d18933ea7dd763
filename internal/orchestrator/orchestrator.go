// Package orchestrator turns a stream of edit events into a correctly
// sequenced stream of compile attempts, with exactly one current result
// visible at any time.
package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/halvar/vellum/internal/apperr"
	"github.com/halvar/vellum/internal/artifact"
	"github.com/halvar/vellum/internal/compiler"
	"github.com/halvar/vellum/internal/docstore"
)

// Phase is the orchestrator's position in the edit/compile cycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseDebouncing Phase = "debouncing"
	PhaseCompiling  Phase = "compiling"
)

// Result is the outcome of the winning compile request. Nil Result in
// State means "not yet compiled".
type Result struct {
	Seq        uint64        `json:"seq"`
	Success    bool          `json:"success"`
	ArtifactID string        `json:"artifact_id,omitempty"`
	ErrorKind  compiler.Kind `json:"error_kind,omitempty"`
	Diagnostic string        `json:"diagnostic,omitempty"`
}

// State is a snapshot of the orchestrator for the UI.
type State struct {
	Phase      Phase   `json:"phase"`
	HighestSeq uint64  `json:"highest_seq"`
	Result     *Result `json:"result,omitempty"`
	Warning    string  `json:"warning,omitempty"`
}

// EventFunc is called after each UI-visible transition.
// kind is one of "compile.started", "compile.succeeded", "compile.failed".
type EventFunc func(kind string, seq uint64)

// Orchestrator owns the edit state of one document session.
//
// Concurrency model: a single internal event loop (goroutine) owns all
// mutable state (phase, sequence counter, debounce timer, last result).
// Public methods communicate with this loop through channels, so no
// mutexes are required. Compiles run in their own goroutines and post
// results back as messages; the loop is the only serialization point
// and arbitrates by sequence number, never by arrival order.
type Orchestrator struct {
	docID    string
	svc      compiler.Service
	life     *artifact.Lifecycle
	store    docstore.Store // may be nil: persistence is best-effort
	debounce time.Duration
	logger   *slog.Logger
	notify   EventFunc

	editCh   chan string
	resultCh chan compileDone
	warnCh   chan string
	stateCh  chan chan State

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

type compileDone struct {
	seq  uint64
	data []byte
	err  error
}

// Config carries the collaborators for a new Orchestrator.
type Config struct {
	DocID    string
	Service  compiler.Service
	Store    docstore.Store
	Debounce time.Duration
	Logger   *slog.Logger
	Notify   EventFunc
}

// New starts an orchestrator event loop for one session.
func New(cfg Config) *Orchestrator {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 750 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	o := &Orchestrator{
		docID:    cfg.DocID,
		svc:      cfg.Service,
		life:     artifact.NewLifecycle(),
		store:    cfg.Store,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		notify:   cfg.Notify,
		editCh:   make(chan string, 64),
		resultCh: make(chan compileDone, 16),
		warnCh:   make(chan string, 16),
		stateCh:  make(chan chan State),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Orchestrator) run() {
	defer close(o.stopped)

	var (
		phase      = PhaseIdle
		highestSeq uint64
		source     string
		result     *Result
		warning    string

		timer   *time.Timer
		timerCh <-chan time.Time
	)

	restartTimer := func() {
		if timer == nil {
			timer = time.NewTimer(o.debounce)
			timerCh = timer.C
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(o.debounce)
		}
	}

	emit := func(kind string, seq uint64) {
		if o.notify != nil {
			o.notify(kind, seq)
		}
	}

	for {
		select {
		case <-o.stopCh:
			if timer != nil {
				timer.Stop()
			}
			o.life.ReleaseAll()
			return

		case src := <-o.editCh:
			// Any edit restarts the quiet-period timer. An in-flight
			// compile keeps running; its result will lose the sequence
			// race if a newer request is issued first.
			source = src
			phase = PhaseDebouncing
			restartTimer()

		case <-timerCh:
			highestSeq++
			seq := highestSeq
			phase = PhaseCompiling
			emit("compile.started", seq)
			// The snapshot is immutable from here: later edits replace
			// the loop's source but never this request's copy.
			go o.runCompile(seq, source)

		case w := <-o.warnCh:
			warning = w

		case done := <-o.resultCh:
			if done.seq < highestSeq {
				o.logger.Debug("orchestrator: stale result discarded",
					slog.String("doc_id", o.docID),
					slog.Uint64("seq", done.seq),
					slog.Uint64("highest", highestSeq))
				continue
			}
			result = o.publish(done)
			if result.Success {
				warning = ""
				emit("compile.succeeded", done.seq)
			} else {
				emit("compile.failed", done.seq)
			}
			// A newer debounce cycle may have started while this
			// request was in flight. The result is still shown
			// (better than nothing) but the cycle keeps going.
			if phase == PhaseCompiling {
				phase = PhaseIdle
			}

		case resp := <-o.stateCh:
			st := State{Phase: phase, HighestSeq: highestSeq, Warning: warning}
			if result != nil {
				r := *result
				st.Result = &r
			}
			resp <- st
		}
	}
}

// runCompile persists the snapshot (best-effort) and invokes the
// compiler. It runs outside the event loop so issuing a new request
// never blocks on a prior one.
func (o *Orchestrator) runCompile(seq uint64, snapshot string) {
	if o.store != nil && o.docID != "" {
		if _, err := o.store.Update(o.docID, "", snapshot, ""); err != nil {
			o.logger.Warn("orchestrator: persist failed",
				slog.String("doc_id", o.docID),
				slog.String("error", err.Error()))
			select {
			case o.warnCh <- "document not saved: " + err.Error():
			case <-o.stopped:
				return
			}
		}
	}

	data, err := o.svc.Compile(context.Background(), snapshot)
	select {
	case o.resultCh <- compileDone{seq: seq, data: data, err: err}:
	case <-o.stopped:
	}
}

// publish hands the winning result to the artifact lifecycle and
// converts it into UI-visible state. On failure the last good artifact
// survives untouched, so the UI can show it alongside the diagnostic.
func (o *Orchestrator) publish(done compileDone) *Result {
	if done.err != nil {
		ce := compiler.AsError(done.err)
		return &Result{
			Seq:        done.seq,
			ErrorKind:  ce.Kind,
			Diagnostic: ce.Diagnostic,
		}
	}

	h := o.life.Publish(done.data, done.seq)
	if err := o.life.Promote(h); err != nil {
		o.logger.Warn("orchestrator: promote failed",
			slog.String("doc_id", o.docID),
			slog.String("error", err.Error()))
		return &Result{
			Seq:        done.seq,
			ErrorKind:  compiler.OutputMissing,
			Diagnostic: err.Error(),
		}
	}
	return &Result{Seq: done.seq, Success: true, ArtifactID: h.ID()}
}

// Edit feeds a new full source snapshot into the session.
func (o *Orchestrator) Edit(source string) error {
	if o.closed.Load() {
		return apperr.ErrClosed
	}
	select {
	case o.editCh <- source:
		return nil
	case <-o.stopped:
		return apperr.ErrClosed
	}
}

// State returns a snapshot of the current session state.
func (o *Orchestrator) State() State {
	if o.closed.Load() {
		return State{Phase: PhaseIdle}
	}
	resp := make(chan State, 1)
	select {
	case o.stateCh <- resp:
	case <-o.stopped:
		return State{Phase: PhaseIdle}
	}
	select {
	case st := <-resp:
		return st
	case <-o.stopped:
		return State{Phase: PhaseIdle}
	}
}

// Artifacts exposes the session's artifact lifecycle for serving.
func (o *Orchestrator) Artifacts() *artifact.Lifecycle {
	return o.life
}

// DocID returns the backing document id, if any.
func (o *Orchestrator) DocID() string { return o.docID }

// Close stops the event loop, cancels the debounce timer, and releases
// all artifact handles. Safe to call multiple times.
func (o *Orchestrator) Close() {
	if o.closed.CompareAndSwap(false, true) {
		close(o.stopCh)
	}
	<-o.stopped
}
