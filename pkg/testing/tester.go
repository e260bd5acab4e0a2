package testing

import (
	"errors"
	"testing"

	"github.com/go-drift/databind/pkg/bind"
	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/frame"
	"github.com/go-drift/databind/pkg/htmlhost"
)

// DefaultDocumentID is the ID of documents created by NewTester.
const DefaultDocumentID = "test"

// ErrSettleTimeout is returned when PumpAndSettle runs out of frames.
var ErrSettleTimeout = errors.New("PumpAndSettle exceeded its frame budget: bindings did not settle")

// Tester owns a document, an engine, and a manually ticked scheduler.
type Tester struct {
	doc       *htmlhost.Document
	engine    *bind.Engine
	scheduler *frame.Manual
}

// NewTester parses markup and creates an engine ticked by Pump. Extra
// options are applied after the tester's scheduler, so they may replace it.
// Call Cleanup() when done, or use NewTesterWithT() instead.
func NewTester(markup string, opts ...bind.Option) (*Tester, error) {
	doc, err := htmlhost.ParseString(DefaultDocumentID, markup)
	if err != nil {
		return nil, err
	}
	scheduler := &frame.Manual{}
	all := append([]bind.Option{bind.WithScheduler(scheduler)}, opts...)
	return &Tester{
		doc:       doc,
		engine:    bind.New(all...),
		scheduler: scheduler,
	}, nil
}

// NewTesterWithT creates a tester that auto-cleans up via t.Cleanup().
// This is the recommended constructor for tests.
func NewTesterWithT(t *testing.T, markup string, opts ...bind.Option) *Tester {
	t.Helper()
	tester, err := NewTester(markup, opts...)
	if err != nil {
		t.Fatalf("NewTester: %v", err)
	}
	t.Cleanup(tester.Cleanup)
	return tester
}

// Cleanup disables observers and detaches the engine.
func (t *Tester) Cleanup() {
	t.engine.Close()
}

// Document returns the document under test.
func (t *Tester) Document() *htmlhost.Document {
	return t.doc
}

// Engine returns the engine under test.
func (t *Tester) Engine() *bind.Engine {
	return t.engine
}

// Scheduler returns the manual scheduler driving coalesced refreshes.
func (t *Tester) Scheduler() *frame.Manual {
	return t.scheduler
}

// Enable starts observing the document.
func (t *Tester) Enable() {
	t.engine.Enable(t.doc)
}

// Refresh re-runs every binding in the scene.
func (t *Tester) Refresh() {
	t.engine.Refresh(t.doc, nil)
}

// Update runs UpdateBinding for the first element found by f.
func (t *Tester) Update(f Finder) {
	t.engine.UpdateBinding(t.doc, t.Find(f).First(), nil)
}

// Pump runs one frame: pending mutation records are delivered, then the
// requested tick runs. It reports whether any work was done.
func (t *Tester) Pump() bool {
	delivered := t.doc.FlushMutations() > 0
	ticked := t.scheduler.Tick()
	return delivered || ticked
}

// PumpAndSettle pumps until a frame does no work or maxFrames is reached.
func (t *Tester) PumpAndSettle(maxFrames int) error {
	for i := 0; i < maxFrames; i++ {
		if !t.Pump() {
			return nil
		}
	}
	if t.doc.PendingMutations() || t.scheduler.Pending() > 0 {
		return ErrSettleTimeout
	}
	return nil
}

// Find evaluates f against the document.
func (t *Tester) Find(f Finder) FinderResult {
	return FinderResult{elements: f.Evaluate(t.doc), finder: f}
}

// Content returns the content of the first element found by f, or "" when
// nothing matches.
func (t *Tester) Content(f Finder) string {
	el := t.Find(f).FirstOrNil()
	if el == nil {
		return ""
	}
	return el.Content()
}

// SceneRoot returns the document's scene root.
func (t *Tester) SceneRoot() dom.Element {
	return t.doc.SceneRoot()
}
