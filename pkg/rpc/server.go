// Package rpc exposes a binding engine and its document over JSON-RPC 2.0.
//
// Authoring tools drive a preview through it: they write data, edit
// directive attributes, and fetch the rendered markup. Messages use
// Content-Length framing, the same as language servers.
//
// Methods:
//
//	databind/setData       {source, path?, value}
//	databind/getData       {source, path?} -> value
//	databind/setAttribute  {selector, name, value?, remove?}
//	databind/refresh       {}
//	databind/render        {} -> {html}
//	databind/sources       {} -> [name]
//	databind/handlers      {} -> [name]
//
// After every store write the server sends a databind/changed
// notification with {source}.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/go-drift/databind/pkg/bind"
	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/htmlhost"
)

// Method names.
const (
	MethodSetData      = "databind/setData"
	MethodGetData      = "databind/getData"
	MethodSetAttribute = "databind/setAttribute"
	MethodRefresh      = "databind/refresh"
	MethodRender       = "databind/render"
	MethodSources      = "databind/sources"
	MethodHandlers     = "databind/handlers"
	NotifyChanged      = "databind/changed"
)

// maxSettle bounds the mutation/refresh rounds run before rendering.
const maxSettle = 32

// SetDataParams are the params of databind/setData.
type SetDataParams struct {
	Source string `json:"source"`
	Path   string `json:"path,omitempty"`
	Value  any    `json:"value"`
}

// GetDataParams are the params of databind/getData.
type GetDataParams struct {
	Source string `json:"source"`
	Path   string `json:"path,omitempty"`
}

// SetAttributeParams are the params of databind/setAttribute.
type SetAttributeParams struct {
	Selector string `json:"selector"`
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	Remove   bool   `json:"remove,omitempty"`
}

// RenderResult is the result of databind/render.
type RenderResult struct {
	HTML string `json:"html"`
}

// ChangedParams are the params of the databind/changed notification.
type ChangedParams struct {
	Source string `json:"source"`
}

// Server serves one engine and document.
type Server struct {
	engine   *bind.Engine
	doc      *htmlhost.Document
	dispatch func(func())
	log      *slog.Logger

	mu    sync.Mutex
	conns map[*jsonrpc2.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithDispatch runs every engine call through dispatch, e.g. a
// [frame.Loop] owned by the engine's goroutine. Without it requests run on
// the connection's goroutine.
func WithDispatch(dispatch func(func())) Option {
	return func(s *Server) { s.dispatch = dispatch }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a server for engine and doc.
func NewServer(engine *bind.Engine, doc *htmlhost.Document, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		doc:    doc,
		log:    slog.Default().With("component", "rpc"),
		conns:  make(map[*jsonrpc2.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve handles requests on rwc until the peer disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	remove := s.engine.Store().OnChange(func(source string) {
		if err := conn.Notify(ctx, NotifyChanged, ChangedParams{Source: source}); err != nil {
			s.log.Debug("change notification failed", "source", source, "error", err)
		}
	})
	defer func() {
		remove()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	s.log.Info("rpc client connected", "document", s.doc.ID())
	select {
	case <-conn.DisconnectNotify():
		s.log.Info("rpc client disconnected")
		return nil
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	}
}

// Connections returns the number of connected clients.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.log.Debug("rpc request", "method", req.Method)
	switch req.Method {
	case MethodSetData:
		var p SetDataParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.Source) == "" {
			return nil, invalidParams("source is required")
		}
		return s.do(ctx, func() (any, error) {
			if p.Path == "" {
				s.engine.SetData(p.Value, p.Source)
			} else {
				s.engine.SetDataPath(p.Source, p.Path, p.Value)
			}
			s.settle()
			return true, nil
		})

	case MethodGetData:
		var p GetDataParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		return s.do(ctx, func() (any, error) {
			var path any
			if p.Path != "" {
				path = p.Path
			}
			return s.engine.GetData(p.Source, path), nil
		})

	case MethodSetAttribute:
		var p SetAttributeParams
		if err := decodeParams(req, &p); err != nil {
			return nil, err
		}
		if p.Selector == "" || p.Name == "" {
			return nil, invalidParams("selector and name are required")
		}
		return s.do(ctx, func() (any, error) {
			el := s.doc.Query(p.Selector)
			if el == nil {
				return nil, invalidParams(fmt.Sprintf("no element matches %q", p.Selector))
			}
			if p.Remove {
				el.RemoveAttribute(p.Name)
			} else {
				el.SetAttribute(p.Name, p.Value)
			}
			s.settle()
			return true, nil
		})

	case MethodRefresh:
		return s.do(ctx, func() (any, error) {
			s.engine.Refresh(s.doc, nil)
			s.settle()
			return true, nil
		})

	case MethodRender:
		return s.do(ctx, func() (any, error) {
			s.settle()
			var b strings.Builder
			if err := s.doc.Render(&b); err != nil {
				return nil, err
			}
			return RenderResult{HTML: b.String()}, nil
		})

	case MethodSources:
		return s.do(ctx, func() (any, error) {
			return s.engine.Store().Sources(), nil
		})

	case MethodHandlers:
		return s.do(ctx, func() (any, error) {
			return s.engine.Registry().Names(), nil
		})

	default:
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
	}
}

// do runs fn on the engine goroutine and waits for its result.
func (s *Server) do(ctx context.Context, fn func() (any, error)) (any, error) {
	run := func() (result any, err error) {
		defer errors.RecoverWithCallback("rpc.Server.handle", func(r any) {
			err = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: fmt.Sprint(r)}
		})
		return fn()
	}
	if s.dispatch == nil {
		return run()
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	s.dispatch(func() {
		r, err := run()
		done <- outcome{r, err}
	})
	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle delivers pending attribute mutations and coalesced refreshes until
// the document is quiet.
func (s *Server) settle() {
	for range maxSettle {
		delivered := s.doc.FlushMutations()
		flushed := s.engine.Flush()
		if delivered == 0 && flushed == 0 {
			return
		}
	}
	s.log.Warn("document did not settle", "rounds", maxSettle)
}

func decodeParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return nil
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func invalidParams(msg string) *jsonrpc2.Error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: msg}
}
