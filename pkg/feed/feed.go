// Package feed streams live data from a socket.io server into a data store.
//
// Each configured event name maps to a source: the first argument of every
// received event replaces that source's value, which refreshes the bindings
// reading it.
package feed

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/go-drift/databind/pkg/config"
	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/store"
)

// DefaultConnectTimeout bounds the wait for the first connection.
const DefaultConnectTimeout = 15 * time.Second

// Config describes one feed connection.
type Config = config.Feed

// Feed is a live socket.io subscription writing into a store.
type Feed struct {
	config   Config
	store    *store.Store
	dispatch func(func())
	log      *slog.Logger

	mu     sync.Mutex
	client *socket.Socket
	closed bool
}

// Option configures a Feed.
type Option func(*Feed)

// WithDispatch runs store writes through dispatch, typically a
// [frame.Loop] owned by the engine's goroutine.
func WithDispatch(dispatch func(func())) Option {
	return func(f *Feed) { f.dispatch = dispatch }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.log = l
		}
	}
}

// New creates an unconnected feed.
func New(st *store.Store, cfg Config, opts ...Option) (*Feed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &errors.BindError{Op: "feed.New", Kind: errors.KindConfig, Err: err, Source: cfg.URL}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "/"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	f := &Feed{
		config: cfg,
		store:  st,
		log:    slog.Default().With("component", "feed", "url", cfg.URL),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Events returns the subscribed event names, sorted.
func (f *Feed) Events() []string {
	names := make([]string, 0, len(f.config.Events))
	for name := range f.config.Events {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Connect dials the server and blocks until the connection is established,
// ctx ends, or the connect timeout passes.
func (f *Feed) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return fmt.Errorf("feed %s is closed", f.config.URL)
	}
	if f.client != nil {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	parsedURL, err := url.Parse(f.config.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if f.config.InsecureSkipVerify {
		f.log.Warn("skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(f.config.Namespace, opts)

	for _, event := range f.Events() {
		io.On(types.EventName(event), func(args ...any) {
			f.deliver(event, args...)
		})
	}
	io.On(types.EventName("disconnect"), func(reason ...any) {
		f.log.Info("feed disconnected", "reason", reason)
	})

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		f.log.Info("feed connected", "namespace", f.config.Namespace, "sid", io.Id())
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connected <- err
	})

	io.Connect()

	timer := time.NewTimer(f.config.ConnectTimeout)
	defer timer.Stop()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return &errors.BindError{Op: "feed.Connect", Kind: errors.KindLoad, Err: err, Source: f.config.URL}
		}
	case <-ctx.Done():
		io.Disconnect()
		return ctx.Err()
	case <-timer.C:
		io.Disconnect()
		return &errors.BindError{
			Op:     "feed.Connect",
			Kind:   errors.KindLoad,
			Err:    fmt.Errorf("timed out after %s waiting for connection", f.config.ConnectTimeout),
			Source: f.config.URL,
		}
	}

	f.mu.Lock()
	f.client = io
	f.mu.Unlock()
	return nil
}

// deliver writes the first event argument into the mapped source.
func (f *Feed) deliver(event string, args ...any) {
	source, ok := f.config.Events[event]
	if !ok {
		return
	}
	var value any
	if len(args) > 0 {
		value = args[0]
	}
	path := f.config.Paths[event]

	write := func() {
		defer errors.Recover("feed.deliver")
		if path != "" {
			f.store.SetPath(source, value, path)
		} else {
			f.store.Set(source, value)
		}
		f.log.Debug("feed event applied", "event", event, "source", source, "path", path)
	}
	if f.dispatch != nil {
		f.dispatch(write)
		return
	}
	write()
}

// Close disconnects the feed. Events already dispatched still apply.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.client != nil {
		f.client.Disconnect()
		f.client = nil
	}
}
