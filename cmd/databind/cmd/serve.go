package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-drift/databind/pkg/datafile"
	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/frame"
	"github.com/go-drift/databind/pkg/rpc"
)

func init() {
	RegisterCommand(&Command{
		Name:  "serve",
		Short: "Serve a bound page over JSON-RPC on stdio",
		Long: `Bind a page and serve it to an editor over JSON-RPC 2.0 on stdin and
stdout, framed with Content-Length headers.

Methods: databind/setData, databind/getData, databind/setAttribute,
databind/refresh, databind/render, databind/sources, databind/handlers.
Every store write is announced with a databind/changed notification.

Flags:
  -d, --data GLOB    Data file pattern (repeatable, ** supported)
  --watch            Reload data files when they change
  --preview          Bind with preview handlers`,
		Usage: "databind serve <page.html> [--data GLOB]... [--watch] [--preview]",
		Run:   runServe,
	})
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

func runServe(args []string) error {
	opts, err := parsePageArgs(args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, opts, &stdioReadWriteCloser{reader: os.Stdin, writer: os.Stdout})
}

// serve answers requests on rwc until the peer hangs up or ctx ends.
func serve(ctx context.Context, opts pageOptions, rwc io.ReadWriteCloser) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := frame.NewLoop()
	refresh := &frame.Timer{Dispatch: loop.Dispatch}
	defer refresh.Stop()

	s, err := openSession(opts, refresh)
	if err != nil {
		return err
	}
	defer s.close()

	if opts.watch && len(s.patterns) > 0 {
		w, err := datafile.NewWatcher(s.engine.Store(), datafile.WatcherConfig{
			Patterns: s.patterns,
			Dispatch: loop.Dispatch,
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			w.Close()
			return err
		}
		defer w.Close()
	}

	srv := rpc.NewServer(s.engine, s.doc, rpc.WithDispatch(loop.Dispatch))
	served := make(chan error, 1)
	go func() {
		served <- srv.Serve(ctx, rwc)
		cancel()
	}()

	slog.Debug("serving", "page", opts.page)
	_ = loop.Run(ctx)
	if err := <-served; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
