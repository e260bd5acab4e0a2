package handlers

import (
	"slices"
	"strings"
	"sync"

	"github.com/go-drift/databind/pkg/dom"
)

// Func renders one phase of a binding on el. A nil return means no fields.
type Func func(doc dom.Document, el dom.Element, ev *Event) Fields

// Registration is either a [SingleRender] or a [Bundle].
type Registration interface {
	expand(defaults Bundle) Bundle
}

// Bundle maps phases to functions. Phases without a function are skipped.
type Bundle map[Phase]Func

func (b Bundle) expand(Bundle) Bundle {
	out := make(Bundle, len(b))
	for phase, fn := range b {
		if fn != nil {
			out[phase] = fn
		}
	}
	return out
}

// SingleRender registers fn as the PrepareForDisplay phase. The remaining
// phases are copied from the default text handler so custom renderers still
// unload correctly.
type SingleRender Func

func (s SingleRender) expand(defaults Bundle) Bundle {
	out := make(Bundle, len(defaults)+1)
	for phase, fn := range defaults {
		if phase != PrepareForDisplay {
			out[phase] = fn
		}
	}
	if s != nil {
		out[PrepareForDisplay] = Func(s)
	}
	return out
}

// DefaultHandler is the handler used when an element names none.
const DefaultHandler = "text"

// Registry holds handler bundles by name.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
	def     string
}

// NewRegistry returns a registry preloaded with the built-in handlers.
func NewRegistry() *Registry {
	r := &Registry{bundles: make(map[string]Bundle), def: DefaultHandler}
	for name, b := range builtins() {
		r.bundles[name] = b
	}
	return r
}

// Register installs reg under name, replacing any earlier registration.
// Empty names and nil registrations are ignored.
func (r *Registry) Register(name string, reg Registration) {
	name = strings.TrimSpace(name)
	if name == "" || reg == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[name] = reg.expand(r.bundles[DefaultHandler])
}

// Lookup returns the bundle registered under name.
func (r *Registry) Lookup(name string) (Bundle, bool) {
	r.mu.RLock()
	b, ok := r.bundles[name]
	r.mu.RUnlock()
	return b, ok
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.bundles))
	for name := range r.bundles {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Default returns the default handler name.
func (r *Registry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def
}

// SetDefault changes the default handler name. Empty restores "text".
func (r *Registry) SetDefault(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultHandler
	}
	r.mu.Lock()
	r.def = name
	r.mu.Unlock()
}

// ParseList splits a comma-separated handler list. An empty list yields def.
func ParseList(attr, def string) []string {
	var names []string
	for _, part := range strings.Split(attr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	if len(names) == 0 && def != "" {
		names = []string{def}
	}
	return names
}

// IsHostCall reports whether name is forwarded to a host function.
func IsHostCall(name string) bool {
	return strings.HasSuffix(name, "()")
}
