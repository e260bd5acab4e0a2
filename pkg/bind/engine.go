// Package bind keeps element content in sync with named data sources.
//
// An element opts in with a key directive:
//
//	<h1 data-magic-key="title"></h1>
//	<p data-magic-key="profile:user.name" data-magic-handler="text,track()"></p>
//
// [Engine.UpdateBinding] resolves the key against the data store and hands
// the value to the element's handlers. Once a document is enabled with
// [Engine.Enable], edits to directive attributes and writes to the store are
// picked up automatically and coalesced into one refresh per tick. Ticks run
// when the host calls [Engine.Flush], or through the scheduler passed to
// [WithScheduler].
//
// The engine is not safe for concurrent use. Schedulers that tick on another
// goroutine must hop back onto the engine's, see [frame.Timer.Dispatch] and
// [frame.Loop].
package bind

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-drift/databind/pkg/config"
	"github.com/go-drift/databind/pkg/dom"
	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/frame"
	"github.com/go-drift/databind/pkg/handlers"
	"github.com/go-drift/databind/pkg/interp"
	"github.com/go-drift/databind/pkg/keypath"
	"github.com/go-drift/databind/pkg/store"
)

// Fallback supplies a value when a key resolves to nothing. Returning nil
// keeps the binding unloaded.
type Fallback func(doc dom.Document, el dom.Element, ev *handlers.Event) any

// Engine binds element trees to a data store.
type Engine struct {
	opts     config.Options
	names    config.AttributeNames
	store    *store.Store
	registry *handlers.Registry
	owner    *frame.Owner
	logger   *slog.Logger
	fallback Fallback

	docs     map[string]*observed
	mappings map[string]*mapping
	watches  []*selectorWatch
	updating map[dom.Element]bool
	// bound records the document of each element seen and whether its last
	// transition rendered or unloaded. Elements never seen are absent.
	bound map[dom.Element]boundState

	removeListener func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default() tagged with
// component=bind.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFallback sets the fallback value provider.
func WithFallback(fn Fallback) Option {
	return func(e *Engine) { e.fallback = fn }
}

// WithStore shares an existing store.
func WithStore(s *store.Store) Option {
	return func(e *Engine) {
		if s != nil {
			e.store = s
		}
	}
}

// WithRegistry shares an existing handler registry.
func WithRegistry(r *handlers.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithScheduler sets where coalesced refreshes run. Without one they wait
// for [Engine.Flush]. A frame.Timer must carry a Dispatch that runs the tick
// on the engine's goroutine.
func WithScheduler(s frame.Scheduler) Option {
	return func(e *Engine) {
		if t, ok := s.(*frame.Timer); ok && t.Dispatch == nil {
			errors.Report(&errors.BindError{
				Op:   "bind.WithScheduler",
				Kind: errors.KindConfig,
				Err:  fmt.Errorf("frame.Timer without Dispatch would run refreshes off the engine goroutine"),
			})
			s = nil
		}
		e.owner = frame.NewOwner(s)
	}
}

// WithOptions replaces the default options. Invalid options are reported
// and the defaults kept.
func WithOptions(o config.Options) Option {
	return func(e *Engine) {
		resolved, err := config.Resolve(o)
		if err != nil {
			errors.Report(&errors.BindError{Op: "bind.WithOptions", Kind: errors.KindConfig, Err: err})
			return
		}
		e.opts = resolved
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		opts:     config.Default(),
		docs:     make(map[string]*observed),
		mappings: make(map[string]*mapping),
		updating: make(map[dom.Element]bool),
		bound:    make(map[dom.Element]boundState),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "bind")
	}
	if e.store == nil {
		e.store = store.New()
	}
	if e.registry == nil {
		e.registry = handlers.NewRegistry()
	}
	if e.owner == nil {
		e.owner = frame.NewOwner(nil)
	}
	e.applyOptions()
	e.removeListener = e.store.OnChange(e.storeChanged)
	return e
}

func (e *Engine) applyOptions() {
	e.names = e.opts.Attributes()
	e.store.SetResolver(e.resolver())
	e.store.SetRedirects(e.opts.Redirects)
	e.registry.SetDefault(e.opts.DefaultHandler)
	if e.names.Attribute != handlers.AttributeDirective {
		e.registry.Register("attribute", handlers.AttributeBundle(e.names.Attribute))
	}
	if managed := dom.AttributeSelector(e.names.Key); managed != handlers.ManagedSelector {
		e.registry.Register(handlers.DefaultHandler, handlers.GuardedTextBundle(managed))
	}
}

// Close detaches the engine from its store and disables every document.
// Pending refreshes are dropped.
func (e *Engine) Close() {
	if e.removeListener != nil {
		e.removeListener()
		e.removeListener = nil
	}
	for _, id := range e.RunningObservers() {
		e.disable(id)
	}
}

// Options returns the current options.
func (e *Engine) Options() config.Options {
	return e.opts
}

// SetOptions replaces the options. Enabled documents are re-subscribed so a
// new attribute prefix takes effect.
func (e *Engine) SetOptions(o config.Options) error {
	resolved, err := config.Resolve(o)
	if err != nil {
		return err
	}
	e.opts = resolved
	e.applyOptions()
	e.resubscribe()
	return nil
}

// Attributes returns the directive attribute names in use.
func (e *Engine) Attributes() config.AttributeNames {
	return e.names
}

// Store returns the data store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Registry returns the handler registry.
func (e *Engine) Registry() *handlers.Registry {
	return e.registry
}

// RegisterHandler installs a handler under name.
func (e *Engine) RegisterHandler(name string, reg handlers.Registration) {
	e.registry.Register(name, reg)
}

// SetData stores value under source, or under the default source when none
// is given.
func (e *Engine) SetData(value any, source ...string) {
	e.store.Set(e.sourceName(source...), value)
}

// SetDataPath assigns value at path inside source.
func (e *Engine) SetDataPath(source string, path any, value any) {
	e.store.SetPath(e.sourceName(source), value, path)
}

// GetData returns the data of source, or the value at path inside it.
// An empty source means the default source.
func (e *Engine) GetData(source string, path any) any {
	return e.store.Get(e.sourceName(source), path)
}

func (e *Engine) sourceName(source ...string) string {
	if len(source) > 0 {
		if s := strings.TrimSpace(source[0]); s != "" {
			return s
		}
	}
	return e.opts.DefaultSource
}

// ResolvePath resolves path against root with the engine's function policy.
func (e *Engine) ResolvePath(root any, path any) any {
	return e.resolver().Resolve(root, path)
}

// InterpolateString substitutes tokens in text. Inline sources read the store.
func (e *Engine) InterpolateString(text string, variables any) string {
	return e.interpolator(nil).InString(text, variables)
}

// InterpolateObject substitutes tokens through nested data.
func (e *Engine) InterpolateObject(value any, variables any, opts ...interp.ObjectOption) any {
	return e.interpolator(nil).InObject(value, variables, opts...)
}

func (e *Engine) resolver() keypath.Resolver {
	return keypath.Resolver{AllowFunctions: e.opts.AllowDataFunctions}
}

func (e *Engine) interpolator(doc dom.Document) interp.Interpolator {
	return interp.Interpolator{
		Lookup:   func(source string) any { return e.sourceData(doc, source) },
		Resolver: e.resolver(),
	}
}

// sourceData returns the root value of source. The custom data source is
// served from the document.
func (e *Engine) sourceData(doc dom.Document, source string) any {
	if source == e.opts.CustomDataSource && doc != nil {
		if custom := doc.CustomData(); custom != nil {
			return custom
		}
		return nil
	}
	return e.store.Get(source, nil)
}

func (e *Engine) dispatcher() handlers.Dispatcher {
	return handlers.Dispatcher{Registry: e.registry, Preview: e.opts.Preview}
}

type refreshAll struct{}

func (e *Engine) storeChanged(source string) {
	if !e.opts.RefreshOnSetData || len(e.docs) == 0 {
		return
	}
	if !e.opts.DebounceSetData {
		e.refreshDocuments()
		return
	}
	e.logger.Debug("refresh scheduled", "source", source)
	e.schedule(refreshAll{}, e.refreshDocuments)
}

func (e *Engine) refreshDocuments() {
	ids := make([]string, 0, len(e.docs))
	for id := range e.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if o, ok := e.docs[id]; ok {
			e.Refresh(o.doc, nil)
		}
	}
}

func (e *Engine) schedule(key any, job func()) {
	e.owner.Schedule(key, func() {
		defer errors.Recover("bind.Engine.flush")
		job()
	})
}

// Flush runs pending coalesced refreshes now and returns how many ran.
func (e *Engine) Flush() int {
	return e.owner.Flush()
}

// Pending reports whether coalesced refreshes are waiting for a tick.
func (e *Engine) Pending() bool {
	return e.owner.NeedsWork()
}
