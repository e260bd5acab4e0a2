package rpc

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/go-drift/databind/pkg/bind"
	"github.com/go-drift/databind/pkg/frame"
	"github.com/go-drift/databind/pkg/htmlhost"
)

const page = `<div id="scene">
  <h1 id="title" data-magic-key="title"></h1>
  <p id="price" data-magic-key="cart.total" data-magic-source="shop" data-magic-prefix="$"></p>
</div>`

type client struct {
	conn    *jsonrpc2.Conn
	changed chan string
}

func (c *client) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Method != NotifyChanged || req.Params == nil {
		return
	}
	var p ChangedParams
	if err := json.Unmarshal(*req.Params, &p); err == nil {
		c.changed <- p.Source
	}
}

func (c *client) call(t *testing.T, method string, params, result any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.conn.Call(ctx, method, params, result)
}

func startServer(t *testing.T, opts ...Option) (*client, *bind.Engine, *htmlhost.Document) {
	t.Helper()
	doc, err := htmlhost.ParseString("preview", page)
	if err != nil {
		t.Fatal(err)
	}
	engine := bind.New(bind.WithScheduler(nil))
	engine.Enable(doc)
	engine.Refresh(doc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	serverSide, clientSide := net.Pipe()
	srv := NewServer(engine, doc, opts...)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, serverSide) }()

	c := &client{changed: make(chan string, 16)}
	c.conn = jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}), c)
	t.Cleanup(func() {
		c.conn.Close()
		cancel()
		<-served
		engine.Close()
	})
	return c, engine, doc
}

func TestSetDataAndRender(t *testing.T) {
	c, _, _ := startServer(t)

	var ok bool
	if err := c.call(t, MethodSetData, SetDataParams{Source: "shared", Value: map[string]any{"title": "Hello"}}, &ok); err != nil || !ok {
		t.Fatalf("setData = %v, %v", ok, err)
	}
	if err := c.call(t, MethodSetData, SetDataParams{Source: "shop", Path: "cart.total", Value: 5}, &ok); err != nil {
		t.Fatalf("setData path: %v", err)
	}

	var rendered RenderResult
	if err := c.call(t, MethodRender, nil, &rendered); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(rendered.HTML, `<h1 id="title" data-magic-key="title">Hello</h1>`) {
		t.Errorf("title not rendered:\n%s", rendered.HTML)
	}
	if !strings.Contains(rendered.HTML, ">$5</p>") {
		t.Errorf("price not rendered:\n%s", rendered.HTML)
	}
}

func TestSetDataSettlesDocument(t *testing.T) {
	c, engine, doc := startServer(t)

	var ok bool
	if err := c.call(t, MethodSetData, SetDataParams{Source: "shared", Value: map[string]any{"title": "Now"}}, &ok); err != nil || !ok {
		t.Fatalf("setData = %v, %v", ok, err)
	}
	if got := doc.ByID("title").Content(); got != "Now" {
		t.Errorf("title after setData = %q, want Now without a render call", got)
	}
	if engine.Pending() {
		t.Error("refreshes still pending after setData returned")
	}
}

func TestGetDataAndSources(t *testing.T) {
	c, engine, _ := startServer(t)
	engine.SetData(map[string]any{"user": map[string]any{"name": "Ada"}}, "profile")

	var name string
	if err := c.call(t, MethodGetData, GetDataParams{Source: "profile", Path: "user.name"}, &name); err != nil {
		t.Fatal(err)
	}
	if name != "Ada" {
		t.Errorf("getData = %q, want Ada", name)
	}

	var sources []string
	if err := c.call(t, MethodSources, nil, &sources); err != nil {
		t.Fatal(err)
	}
	if len(sources) != 1 || sources[0] != "profile" {
		t.Errorf("sources = %v", sources)
	}
}

func TestSetAttributeRebinds(t *testing.T) {
	c, engine, doc := startServer(t)
	engine.SetData(map[string]any{"title": "A", "subtitle": "B"})
	engine.Flush()

	var ok bool
	if err := c.call(t, MethodSetAttribute, SetAttributeParams{Selector: "#title", Name: "data-magic-key", Value: "subtitle"}, &ok); err != nil {
		t.Fatal(err)
	}
	if got := doc.ByID("title").Content(); got != "B" {
		t.Errorf("title content = %q, want B", got)
	}

	err := c.call(t, MethodSetAttribute, SetAttributeParams{Selector: "#missing", Name: "x"}, &ok)
	var rpcErr *jsonrpc2.Error
	if e, isRPC := err.(*jsonrpc2.Error); isRPC {
		rpcErr = e
	}
	if rpcErr == nil || rpcErr.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("missing element error = %v, want invalid params", err)
	}
}

func TestChangedNotification(t *testing.T) {
	c, _, _ := startServer(t)
	var ok bool
	if err := c.call(t, MethodSetData, SetDataParams{Source: "ticker", Value: 1}, &ok); err != nil {
		t.Fatal(err)
	}
	select {
	case source := <-c.changed:
		if source != "ticker" {
			t.Errorf("changed source = %q, want ticker", source)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestUnknownMethodAndBadParams(t *testing.T) {
	c, _, _ := startServer(t)

	err := c.call(t, "databind/nope", nil, nil)
	if e, ok := err.(*jsonrpc2.Error); !ok || e.Code != jsonrpc2.CodeMethodNotFound {
		t.Errorf("unknown method error = %v", err)
	}

	err = c.call(t, MethodSetData, SetDataParams{Value: 1}, nil)
	if e, ok := err.(*jsonrpc2.Error); !ok || e.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("missing source error = %v", err)
	}
}

func TestHandlersList(t *testing.T) {
	c, _, _ := startServer(t)
	var names []string
	if err := c.call(t, MethodHandlers, nil, &names); err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "attribute,image,none,text" {
		t.Errorf("handlers = %v", names)
	}
}

func TestDispatchHop(t *testing.T) {
	loop := frame.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	c, _, _ := startServer(t, WithDispatch(loop.Dispatch))
	var ok bool
	if err := c.call(t, MethodSetData, SetDataParams{Source: "shared", Value: map[string]any{"title": "Hopped"}}, &ok); err != nil {
		t.Fatal(err)
	}
	var rendered RenderResult
	if err := c.call(t, MethodRender, nil, &rendered); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rendered.HTML, ">Hopped</h1>") {
		t.Errorf("render through loop:\n%s", rendered.HTML)
	}
}
