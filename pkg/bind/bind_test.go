package bind_test

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-drift/databind/pkg/bind"
	"github.com/go-drift/databind/pkg/config"
	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/frame"
	"github.com/go-drift/databind/pkg/handlers"
	"github.com/go-drift/databind/pkg/htmlhost"
	"github.com/go-drift/databind/pkg/keypath"
	bindtest "github.com/go-drift/databind/pkg/testing"
)

const (
	keyAttr     = "data-magic-key"
	sourceAttr  = "data-magic-source"
	handlerAttr = "data-magic-handler"
	prefixAttr  = "data-magic-prefix"
)

type captureHandler struct {
	errs          []*errors.BindError
	handlerErrors []*errors.HandlerError
	panics        []*errors.PanicError
}

func (c *captureHandler) HandleError(err *errors.BindError) { c.errs = append(c.errs, err) }
func (c *captureHandler) HandlePanic(p *errors.PanicError)  { c.panics = append(c.panics, p) }
func (c *captureHandler) HandleHandlerError(err *errors.HandlerError) {
	c.handlerErrors = append(c.handlerErrors, err)
}

func captureErrors(t *testing.T) *captureHandler {
	t.Helper()
	c := &captureHandler{}
	errors.SetHandler(c)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return c
}

func withRecorder(tester *bindtest.Tester, render bool) *bindtest.RecordingHandler {
	rec := &bindtest.RecordingHandler{Render: render}
	tester.Engine().RegisterHandler("rec", rec.Bundle())
	return rec
}

func TestEndToEnd(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<h1 id="title" data-magic-key="title"></h1>`)
	eng := tester.Engine()
	eng.SetData(map[string]any{"title": "Hello"})
	tester.Enable()
	tester.Refresh()

	if got := tester.Content(bindtest.ByID("title")); got != "Hello" {
		t.Fatalf("content = %q, want Hello", got)
	}

	tester.Find(bindtest.ByID("title")).First().SetAttribute(keyAttr, "missing")
	if err := tester.PumpAndSettle(10); err != nil {
		t.Fatal(err)
	}
	if got := tester.Content(bindtest.ByID("title")); got != "" {
		t.Errorf("content after missing key = %q, want empty", got)
	}

	tester.Find(bindtest.ByID("title")).First().SetAttribute(keyAttr, "title")
	tester.PumpAndSettle(10)
	if got := tester.Content(bindtest.ByID("title")); got != "Hello" {
		t.Errorf("content after restoring key = %q, want Hello", got)
	}
}

func TestDefaultEngineRefreshesOnFlush(t *testing.T) {
	doc, err := htmlhost.ParseString("doc", `<h1 id="title" data-magic-key="title"></h1>`)
	if err != nil {
		t.Fatal(err)
	}
	eng := bind.New()
	t.Cleanup(eng.Close)
	eng.Enable(doc)
	title := doc.ByID("title")

	// Run under -race: a refresh on another goroutine would collide here.
	deadline := time.Now().Add(50 * time.Millisecond)
	for i := 0; time.Now().Before(deadline); i++ {
		eng.SetData(map[string]any{"title": strconv.Itoa(i)})
		eng.UpdateBinding(doc, title, nil)
	}

	eng.SetData(map[string]any{"title": "final"})
	time.Sleep(4 * frame.DefaultWindow)
	if !eng.Pending() {
		t.Fatal("refresh ran without a Flush")
	}
	if title.Content() == "final" {
		t.Fatal("content changed before Flush")
	}
	if n := eng.Flush(); n != 1 {
		t.Errorf("Flush ran %d jobs, want 1", n)
	}
	if got := title.Content(); got != "final" {
		t.Errorf("content after Flush = %q", got)
	}
}

func TestTimerWithoutDispatchRejected(t *testing.T) {
	c := captureErrors(t)
	doc, err := htmlhost.ParseString("doc", `<h1 id="title" data-magic-key="title"></h1>`)
	if err != nil {
		t.Fatal(err)
	}
	eng := bind.New(bind.WithScheduler(&frame.Timer{}))
	t.Cleanup(eng.Close)

	if len(c.errs) != 1 || c.errs[0].Kind != errors.KindConfig {
		t.Fatalf("reported errors = %v, want one config error", c.errs)
	}
	eng.Enable(doc)
	eng.SetData(map[string]any{"title": "late"})
	time.Sleep(4 * frame.DefaultWindow)
	if !eng.Pending() || doc.ByID("title").Content() != "" {
		t.Error("a Timer without Dispatch must fall back to manual flushing")
	}
	eng.Flush()
	if got := doc.ByID("title").Content(); got != "late" {
		t.Errorf("content after Flush = %q", got)
	}
}

func TestDataFunctionsDisabled(t *testing.T) {
	calls := 0
	lazy := keypath.Func(func() any { calls++; return "called" })
	markup := `<p id="p" data-magic-key="lazy" data-magic-prefix="$"></p>`

	opts := config.Default()
	opts.AllowDataFunctions = false
	off := bindtest.NewTesterWithT(t, markup, bind.WithOptions(opts))
	off.Engine().SetData(map[string]any{"lazy": lazy})
	off.Update(bindtest.ByID("p"))
	if got := off.Content(bindtest.ByID("p")); got != "" {
		t.Errorf("content with functions disabled = %q, want empty", got)
	}
	if calls != 0 {
		t.Fatalf("function called %d times with functions disabled", calls)
	}

	on := bindtest.NewTesterWithT(t, markup)
	on.Engine().SetData(map[string]any{"lazy": lazy})
	on.Update(bindtest.ByID("p"))
	if got := on.Content(bindtest.ByID("p")); got != "$called" {
		t.Errorf("content with functions enabled = %q", got)
	}
}

func TestEscapedValueIsIdempotent(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="text, rec"></p>`)
	rec := withRecorder(tester, false)
	tester.Engine().SetData(map[string]any{"title": "Tom & Jerry"})

	tester.Update(bindtest.ByID("p"))
	rec.Reset()
	tester.Update(bindtest.ByID("p"))

	calls := rec.Calls()
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	for _, c := range calls {
		if c.Fields[handlers.FieldUnchanged] != true {
			t.Errorf("%s fields = %v, want unchanged", c.Phase, c.Fields)
		}
	}
}

func TestTextKeepsNestedBindings(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<div id="card" data-magic-key="card">
  <span id="name" data-magic-key="name"></span>
</div>`)
	tester.Engine().SetData(map[string]any{"card": "flattened", "name": "Ada"})
	tester.Refresh()

	if got := tester.Content(bindtest.ByID("name")); got != "Ada" {
		t.Errorf("nested binding = %q, want Ada", got)
	}
	if strings.Contains(tester.Content(bindtest.ByID("card")), "flattened") {
		t.Error("text handler overwrote an element holding bound children")
	}
}

func TestRefreshForgetsDetachedElements(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<div id="card">
  <p id="a" data-magic-key="a"></p>
  <p id="b" data-magic-key="b"></p>
</div>`)
	eng := tester.Engine()
	eng.SetData(map[string]any{"a": "1", "b": "2"})
	tester.Refresh()
	if n := eng.Tracked(); n != 2 {
		t.Fatalf("tracked %d elements, want 2", n)
	}

	tester.Find(bindtest.ByID("card")).First().SetContent("replaced")
	tester.Refresh()
	if n := eng.Tracked(); n != 0 {
		t.Errorf("tracked %d elements after they left the scene, want 0", n)
	}
}

func TestSourceChangeUnloadsOnce(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="rec"></p>`)
	rec := withRecorder(tester, true)
	tester.Engine().SetData(map[string]any{"title": "Hello"})
	tester.Enable()
	tester.Refresh()
	if got := tester.Content(bindtest.ByID("p")); got != "Hello" {
		t.Fatalf("content = %q", got)
	}

	tester.Find(bindtest.ByID("p")).First().SetAttribute(sourceAttr, "other")
	if err := tester.PumpAndSettle(10); err != nil {
		t.Fatal(err)
	}
	if n := rec.Count(handlers.Unload); n != 1 {
		t.Errorf("Unload ran %d times, want 1", n)
	}
	if got := tester.Content(bindtest.ByID("p")); got != "" {
		t.Errorf("content = %q, want empty", got)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="text, rec"></p>`)
	rec := withRecorder(tester, false)
	tester.Engine().SetData(map[string]any{"title": "Hello"})

	tester.Update(bindtest.ByID("p"))
	before := tester.Document().String()
	rec.Reset()
	tester.Update(bindtest.ByID("p"))

	if after := tester.Document().String(); after != before {
		t.Errorf("second update changed the document:\n%s\n%s", before, after)
	}
	calls := rec.Calls()
	if len(calls) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(calls))
	}
	for _, c := range calls {
		if c.Fields[handlers.FieldUnchanged] != true {
			t.Errorf("%s fields = %v, want unchanged threaded from text", c.Phase, c.Fields)
		}
	}
}

func TestUnloadOnNull(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="anything" data-magic-handler="rec"></p>`)
	rec := withRecorder(tester, true)
	tester.Engine().SetData(nil, "shared")
	tester.Update(bindtest.ByID("p"))

	if n := rec.Count(handlers.Unload); n != 1 {
		t.Errorf("Unload ran %d times, want 1", n)
	}
	if n := rec.Count(handlers.PrepareForDisplay); n != 0 {
		t.Errorf("PrepareForDisplay ran %d times, want 0", n)
	}
}

func TestInertWithoutKey(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-handler="rec">keep</p>`)
	rec := withRecorder(tester, true)
	tester.Update(bindtest.ByID("p"))
	if len(rec.Calls()) != 0 || tester.Content(bindtest.ByID("p")) != "keep" {
		t.Error("element without a key must be left alone")
	}
}

func TestBranchAndSources(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<div data-magic-branch="user">
  <div data-magic-branch="+address">
    <span id="city" data-magic-key="city"></span>
    <span id="inline" data-magic-key="profile:nick"></span>
    <span id="custom" data-magic-key="customData:theme"></span>
  </div>
  <div data-magic-source="profile">
    <span id="inherited" data-magic-key="nick"></span>
  </div>
</div>`)
	eng := tester.Engine()
	eng.SetData(map[string]any{"user": map[string]any{"address": map[string]any{"city": "Oslo"}}})
	eng.SetData(map[string]any{"nick": "ada", "user": map[string]any{"nick": "branched"}}, "profile")
	tester.Document().SetCustomData(map[string]any{"theme": "dark"})
	tester.Refresh()

	tests := []struct {
		id, want string
	}{
		{"city", "Oslo"},
		{"inline", "ada"},
		{"custom", "dark"},
		{"inherited", "branched"},
	}
	for _, tt := range tests {
		if got := tester.Content(bindtest.ByID(tt.id)); got != tt.want {
			t.Errorf("#%s = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestPrefixAppendAndInterpolation(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<p id="price" data-magic-key="price" data-magic-prefix="$" data-magic-append=" USD" data-magic-handler="text,rec"></p>
<p id="greeting" data-magic-key="greeting"></p>
<p id="item" data-idx="1" data-magic-key="items.${idx}"></p>`)
	rec := withRecorder(tester, false)
	tester.Engine().SetData(map[string]any{
		"price":    5,
		"greeting": "Hi ${name}",
		"name":     "Ada",
		"items":    []any{"zero", "one"},
	})
	tester.Enable()
	tester.Refresh()

	if got := tester.Content(bindtest.ByID("price")); got != "$5 USD" {
		t.Errorf("price = %q", got)
	}
	if got := tester.Content(bindtest.ByID("greeting")); got != "Hi Ada" {
		t.Errorf("greeting = %q", got)
	}
	if got := tester.Content(bindtest.ByID("item")); got != "one" {
		t.Errorf("item = %q", got)
	}

	tester.Find(bindtest.ByID("price")).First().SetAttribute(prefixAttr, "€")
	tester.PumpAndSettle(10)
	if got := tester.Content(bindtest.ByID("price")); got != "€5 USD" {
		t.Errorf("price after prefix change = %q", got)
	}
	if n := rec.Count(handlers.Unload); n != 0 {
		t.Errorf("prefix change should not unload, got %d", n)
	}
}

func TestHandlerChangeUnloadsOldHandler(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="rec"></p>`)
	rec := withRecorder(tester, true)
	tester.Engine().SetData(map[string]any{"title": "Hello"})
	tester.Enable()
	tester.Refresh()

	tester.Find(bindtest.ByID("p")).First().SetAttribute(handlerAttr, "text")
	tester.PumpAndSettle(10)

	if n := rec.Count(handlers.Unload); n != 1 {
		t.Errorf("old handler unloaded %d times, want 1", n)
	}
	if got := tester.Content(bindtest.ByID("p")); got != "Hello" {
		t.Errorf("content = %q, want Hello from the new handler", got)
	}
}

func TestKeyRemovalUnloadsWithOldKey(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="rec"></p>`)
	rec := withRecorder(tester, true)
	tester.Engine().SetData(map[string]any{"title": "Hello"})
	tester.Enable()
	tester.Refresh()

	tester.Find(bindtest.ByID("p")).First().RemoveAttribute(keyAttr)
	tester.PumpAndSettle(10)

	last, ok := rec.Last()
	if !ok || last.Phase != handlers.Unload || last.Key != "title" {
		t.Errorf("last call = %+v, want Unload with key title", last)
	}
	if got := tester.Content(bindtest.ByID("p")); got != "" {
		t.Errorf("content = %q", got)
	}
}

func TestHandlerPanicIsolated(t *testing.T) {
	capture := captureErrors(t)
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="boom, text"></p>`)
	tester.Engine().RegisterHandler("boom", handlers.SingleRender(func(dom.Document, dom.Element, *handlers.Event) handlers.Fields {
		panic("boom")
	}))
	tester.Engine().SetData(map[string]any{"title": "Hello"})
	tester.Update(bindtest.ByID("p"))

	if got := tester.Content(bindtest.ByID("p")); got != "Hello" {
		t.Errorf("sibling handler should still render, content = %q", got)
	}
	if len(capture.handlerErrors) != 1 || capture.handlerErrors[0].Handler != "boom" {
		t.Errorf("reported %+v, want one error for boom", capture.handlerErrors)
	}
}

func TestReentrantUpdateDropped(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="nested"></p>`)
	eng := tester.Engine()
	calls := 0
	eng.RegisterHandler("nested", handlers.Bundle{
		handlers.PrepareForDisplay: func(doc dom.Document, el dom.Element, _ *handlers.Event) handlers.Fields {
			calls++
			eng.UpdateBinding(doc, el, nil)
			return nil
		},
	})
	eng.SetData(map[string]any{"title": "Hello"})
	tester.Update(bindtest.ByID("p"))
	if calls != 1 {
		t.Errorf("handler ran %d times, want 1", calls)
	}
}

func TestStoreWritesCoalesce(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="n" data-magic-handler="text,rec"></p>`)
	rec := withRecorder(tester, false)
	eng := tester.Engine()
	tester.Enable()

	for i := 1; i <= 3; i++ {
		eng.SetDataPath("shared", "n", i)
	}
	if n := tester.Scheduler().Pending(); n != 1 {
		t.Fatalf("pending frames = %d, want 1", n)
	}
	tester.PumpAndSettle(10)
	if got := tester.Content(bindtest.ByID("p")); got != "3" {
		t.Errorf("content = %q, want 3", got)
	}
	if n := rec.Count(handlers.Load); n != 1 {
		t.Errorf("Load ran %d times, want one coalesced refresh", n)
	}
}

func TestRefreshOnSetDataDisabled(t *testing.T) {
	opts := config.Default()
	opts.RefreshOnSetData = false
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="n"></p>`, bind.WithOptions(opts))
	tester.Enable()
	tester.Engine().SetData(map[string]any{"n": 1})
	if tester.Scheduler().Pending() != 0 {
		t.Error("no refresh should be scheduled")
	}
}

func TestFallbackAndPreview(t *testing.T) {
	opts := config.Default()
	opts.Preview = true
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="missing"></p>`,
		bind.WithOptions(opts),
		bind.WithFallback(func(_ dom.Document, _ dom.Element, ev *handlers.Event) any {
			return "n/a (" + ev.Key + ")"
		}),
	)
	tester.Update(bindtest.ByID("p"))
	if got := tester.Content(bindtest.ByID("p")); got != "n/a (missing)" {
		t.Errorf("content = %q", got)
	}
}

func TestHostEventPhase(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key="title" data-magic-handler="rec"></p>`)
	rec := withRecorder(tester, false)
	tester.Engine().SetData(map[string]any{"title": "Hello"})
	el := tester.Find(bindtest.ByID("p")).First()

	tester.Engine().UpdateBinding(tester.Document(), el, &handlers.Event{Type: handlers.Load})
	calls := rec.Calls()
	if len(calls) != 1 || calls[0].Phase != handlers.Load || calls[0].Data != "Hello" {
		t.Errorf("calls = %+v, want a single Load", calls)
	}
}

func TestInitialKey(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-magic-key-initial="title"></p>`)
	tester.Engine().SetData(map[string]any{"title": "Hello"})
	tester.Refresh()
	el := tester.Find(bindtest.ByID("p")).First()
	if key, _ := el.Attribute(keyAttr); key != "title" {
		t.Errorf("key = %q, want copied from initial", key)
	}
	if el.Content() != "Hello" {
		t.Errorf("content = %q", el.Content())
	}
}

func TestEnableIdempotent(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p></p>`)
	eng := tester.Engine()
	tester.Enable()
	tester.Enable()
	if got := eng.RunningObservers(); len(got) != 1 || got[0] != bindtest.DefaultDocumentID {
		t.Errorf("RunningObservers() = %v", got)
	}
	if n := tester.Document().ObserverCount(); n != 1 {
		t.Errorf("ObserverCount() = %d, want 1", n)
	}
	eng.Disable(tester.Document())
	eng.Disable(tester.Document())
	if eng.Enabled(tester.Document()) || tester.Document().ObserverCount() != 0 {
		t.Error("Disable should remove the subscription")
	}
}

func TestMapDataAttribute(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<div id="box" data-color="red">
  <span class="color"></span>
  <span class="color"></span>
  <span class="other"></span>
</div>`)
	rec := withRecorder(tester, false)
	eng := tester.Engine()

	if eng.MapDataAttribute("Bad Name", "rec") {
		t.Error("invalid attribute name should be rejected")
	}
	if !eng.MapDataAttribute("color", "rec") {
		t.Fatal("MapDataAttribute rejected a valid name")
	}
	tester.Enable()
	if n := rec.Count(handlers.PrepareForDisplay); n != 3 {
		t.Errorf("initial broadcast reached %d elements, want 3", n)
	}

	rec.Reset()
	tester.Find(bindtest.ByID("box")).First().SetAttribute("data-color", "blue")
	tester.PumpAndSettle(10)
	calls := rec.Calls()
	if len(calls) != 3 {
		t.Fatalf("broadcast reached %d elements, want 3", len(calls))
	}
	for _, c := range calls {
		if c.Data != "blue" || c.Key != "data-color" {
			t.Errorf("call = %+v", c)
		}
	}
}

func TestMapAttributeToSelectorInitialAndRemoval(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<section id="panel" data-theme-initial="dark">
  <p class="themed"></p>
  <p class="plain"></p>
</section>`)
	rec := withRecorder(tester, false)
	eng := tester.Engine()

	if eng.MapAttributeToSelector("data-theme", "  ", "rec") {
		t.Error("empty selector should be rejected")
	}
	if !eng.MapAttributeToSelector("data-theme", ".themed", "rec") {
		t.Fatal("MapAttributeToSelector rejected a valid mapping")
	}
	tester.Enable()

	panel := tester.Find(bindtest.ByID("panel")).First()
	if v, _ := panel.Attribute("data-theme"); v != "dark" {
		t.Errorf("initial value not copied, data-theme = %q", v)
	}
	if n := rec.Count(handlers.PrepareForDisplay); n != 2 {
		t.Errorf("initial broadcast reached %d elements, want 2", n)
	}

	rec.Reset()
	panel.RemoveAttribute("data-theme")
	tester.PumpAndSettle(10)
	if n := rec.Count(handlers.Unload); n != 2 {
		t.Errorf("removal unloaded %d elements, want 2", n)
	}
	if n := rec.Count(handlers.PrepareForDisplay); n != 0 {
		t.Errorf("removal rendered %d elements, want 0", n)
	}
}

func TestInitialValueChangesLive(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<section id="panel">
  <p class="themed"></p>
</section>`)
	rec := withRecorder(tester, false)
	tester.Engine().MapAttributeToSelector("data-theme", ".themed", "rec")
	tester.Enable()
	panel := tester.Find(bindtest.ByID("panel")).First()

	panel.SetAttribute("data-theme-initial", "light")
	tester.PumpAndSettle(10)
	if v, _ := panel.Attribute("data-theme"); v != "light" {
		t.Fatalf("data-theme = %q, want light seeded from the initial value", v)
	}
	if n := rec.Count(handlers.PrepareForDisplay); n != 2 {
		t.Errorf("seeded value reached %d elements, want 2", n)
	}

	panel.SetAttribute("data-theme-initial", "dark")
	tester.PumpAndSettle(10)
	if v, _ := panel.Attribute("data-theme"); v != "light" {
		t.Errorf("initial value overwrote a live value outside preview: %q", v)
	}

	opts := config.Default()
	opts.Preview = true
	preview := bindtest.NewTesterWithT(t, `<section id="panel" data-theme="light" data-theme-initial="light"></section>`, bind.WithOptions(opts))
	preview.Engine().MapAttributeToSelector("data-theme", ".themed", "text")
	preview.Enable()
	el := preview.Find(bindtest.ByID("panel")).First()
	el.SetAttribute("data-theme-initial", "dark")
	preview.PumpAndSettle(10)
	if v, _ := el.Attribute("data-theme"); v != "dark" {
		t.Errorf("preview data-theme = %q, want dark", v)
	}
}

func TestObserveBySelector(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `
<div id="box" class="watched" style="color: red"></div>
<div id="other" style="color: red"></div>`)
	rec := withRecorder(tester, false)
	eng := tester.Engine()

	if eng.ObserveBySelector(" ", []string{"rec"}) || eng.ObserveBySelector(".watched", nil) {
		t.Error("empty selector or handler list should be rejected")
	}
	if eng.ObserveBySelector(".watched", []string{"rec"}, "Bad Name") {
		t.Error("invalid attribute filter should be rejected")
	}
	if !eng.ObserveBySelector(".watched", []string{"rec"}) {
		t.Fatal("ObserveBySelector rejected a valid watch")
	}
	tester.Enable()
	if n := len(rec.Calls()); n != 0 {
		t.Errorf("enable ran %d handler calls, want 0", n)
	}

	box := tester.Find(bindtest.ByID("box")).First()
	box.SetAttribute("style", "color: blue")
	tester.Find(bindtest.ByID("other")).First().SetAttribute("style", "color: blue")
	box.SetAttribute("title", "ignored")
	tester.PumpAndSettle(10)
	calls := rec.Calls()
	if len(calls) != 1 {
		t.Fatalf("recorded %d calls, want 1", len(calls))
	}
	if calls[0].Data != "color: blue" || calls[0].Key != "style" || calls[0].Phase != handlers.PrepareForDisplay {
		t.Errorf("call = %+v", calls[0])
	}

	rec.Reset()
	eng.ObserveBySelector("#box", []string{"rec"}, "aria-label")
	box.SetAttribute("aria-label", "Box")
	tester.PumpAndSettle(10)
	calls = rec.Calls()
	if len(calls) != 1 || calls[0].Key != "aria-label" || calls[0].Data != "Box" {
		t.Errorf("filtered attribute calls = %+v", calls)
	}
}

func TestDataAPI(t *testing.T) {
	opts := config.Default()
	opts.Redirects = map[string]string{"alias": "shared"}
	eng := bind.New(bind.WithOptions(opts))
	defer eng.Close()

	eng.SetDataPath("", "user.name", "Ada")
	if got := eng.GetData("", "user.name"); got != "Ada" {
		t.Errorf("GetData = %v", got)
	}
	if got := eng.GetData("alias", "user.name"); got != "Ada" {
		t.Errorf("redirected GetData = %v", got)
	}
	if got := eng.ResolvePath(map[string]any{"a": []any{1, 2}}, "a[1]"); got != 2 {
		t.Errorf("ResolvePath = %v", got)
	}
	if got := eng.InterpolateString("${shared:user.name}", nil); got != "Ada" {
		t.Errorf("InterpolateString = %q", got)
	}
	obj := eng.InterpolateObject(map[string]any{"x": "${v}"}, map[string]any{"v": 1}).(map[string]any)
	if obj["x"] != "1" {
		t.Errorf("InterpolateObject = %v", obj)
	}
}

func TestSetOptionsChangesPrefix(t *testing.T) {
	tester := bindtest.NewTesterWithT(t, `<p id="p" data-bind-key="title"></p>`)
	eng := tester.Engine()
	eng.SetData(map[string]any{"title": "Hello"})

	opts := eng.Options()
	opts.AttributePrefix = "data-bind"
	if err := eng.SetOptions(opts); err != nil {
		t.Fatal(err)
	}
	tester.Refresh()
	if got := tester.Content(bindtest.ByID("p")); got != "Hello" {
		t.Errorf("content = %q", got)
	}

	opts.Requires = "v99.0.0"
	if err := eng.SetOptions(opts); !errors.Is(err, errors.ErrIncompatibleVersion) {
		t.Errorf("SetOptions error = %v", err)
	}
	if !strings.HasPrefix(eng.Attributes().Key, "data-bind") {
		t.Error("failed SetOptions must keep the previous options")
	}
}
