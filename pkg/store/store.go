// Package store holds the named data sources bindings resolve against.
package store

import (
	"slices"
	"strconv"
	"sync"

	"github.com/go-drift/databind/pkg/keypath"
)

// Store maps source names to arbitrary nested values.
//
// Reads consult the redirect table first: a redirected name always yields
// the target's data. Missing sources read as nil.
type Store struct {
	mu        sync.RWMutex
	sources   map[string]any
	redirects map[string]string
	resolver  keypath.Resolver

	listenerMu sync.Mutex
	listeners  map[int]func(source string)
	nextID     int
	notify     bool
}

// New creates an empty store with change notification enabled.
func New() *Store {
	return &Store{
		sources:   make(map[string]any),
		redirects: make(map[string]string),
		resolver:  keypath.Resolver{AllowFunctions: true},
		notify:    true,
	}
}

// SetResolver replaces the resolver used by Get and SetPath.
func (s *Store) SetResolver(r keypath.Resolver) {
	s.mu.Lock()
	s.resolver = r
	s.mu.Unlock()
}

// SetRedirects replaces the alias table (alias -> real source name).
func (s *Store) SetRedirects(redirects map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects = make(map[string]string, len(redirects))
	for alias, target := range redirects {
		s.redirects[alias] = target
	}
}

// Redirect returns the source name reads of name are served from.
func (s *Store) Redirect(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redirectLocked(name)
}

func (s *Store) redirectLocked(name string) string {
	if target, ok := s.redirects[name]; ok && target != "" {
		return target
	}
	return name
}

// Set stores value under source, replacing any previous value.
func (s *Store) Set(source string, value any) {
	s.mu.Lock()
	s.sources[source] = value
	s.mu.Unlock()
	s.changed(source)
}

// SetPath assigns value at path inside source. All but the last segment are
// resolved as a branch; missing maps along the way are created. An empty path
// behaves like Set.
func (s *Store) SetPath(source string, value any, path any) {
	segments := keypath.ToSegments(path)
	if len(segments) == 0 {
		s.Set(source, value)
		return
	}

	s.mu.Lock()
	root, ok := s.sources[source].(map[string]any)
	if !ok {
		if existing := s.sources[source]; existing != nil && keypath.IsContainer(existing) {
			s.assignLocked(existing, segments, value)
			s.mu.Unlock()
			s.changed(source)
			return
		}
		root = make(map[string]any)
		s.sources[source] = root
	}
	s.assignLocked(root, segments, value)
	s.mu.Unlock()
	s.changed(source)
}

func (s *Store) assignLocked(root any, segments []string, value any) {
	parent := root
	for _, segment := range segments[:len(segments)-1] {
		next := s.resolver.Resolve(parent, segment)
		if !keypath.IsContainer(next) {
			created := make(map[string]any)
			if !setChild(parent, segment, created) {
				return
			}
			next = created
		}
		parent = next
	}
	setChild(parent, segments[len(segments)-1], value)
}

// setChild assigns into maps and slices. Slices are only written in place,
// within their current length.
func setChild(container any, segment string, value any) bool {
	switch c := container.(type) {
	case map[string]any:
		c[segment] = value
		return true
	case []any:
		i, err := strconv.Atoi(segment)
		if err != nil || i < 0 || i >= len(c) {
			return false
		}
		c[i] = value
		return true
	}
	return false
}

// Get returns the data of source, or the value at path inside it.
// path may be nil or "" for the source root.
func (s *Store) Get(source string, path any) any {
	s.mu.RLock()
	data, ok := s.sources[s.redirectLocked(source)]
	resolver := s.resolver
	s.mu.RUnlock()
	if !ok || data == nil {
		return nil
	}
	if len(keypath.ToSegments(path)) == 0 {
		return data
	}
	return resolver.Resolve(data, path)
}

// Has reports whether source (after redirection) holds a value.
func (s *Store) Has(source string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sources[s.redirectLocked(source)]
	return ok
}

// Delete removes source.
func (s *Store) Delete(source string) {
	s.mu.Lock()
	_, existed := s.sources[source]
	delete(s.sources, source)
	s.mu.Unlock()
	if existed {
		s.changed(source)
	}
}

// Sources returns the stored source names, sorted.
func (s *Store) Sources() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	s.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Snapshot returns a shallow copy of the source map.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.sources))
	for name, value := range s.sources {
		out[name] = value
	}
	return out
}

// OnChange registers a listener called after every write.
// The returned function removes it.
func (s *Store) OnChange(fn func(source string)) (remove func()) {
	if fn == nil {
		return func() {}
	}
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(string))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenerMu.Lock()
		delete(s.listeners, id)
		s.listenerMu.Unlock()
	}
}

// SetNotify toggles change notification.
func (s *Store) SetNotify(enabled bool) {
	s.listenerMu.Lock()
	s.notify = enabled
	s.listenerMu.Unlock()
}

func (s *Store) changed(source string) {
	s.listenerMu.Lock()
	if !s.notify || len(s.listeners) == 0 {
		s.listenerMu.Unlock()
		return
	}
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(string), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.listenerMu.Unlock()

	for _, fn := range fns {
		fn(source)
	}
}
