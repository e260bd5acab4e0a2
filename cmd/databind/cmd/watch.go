package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-drift/databind/pkg/datafile"
	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/feed"
	"github.com/go-drift/databind/pkg/frame"
)

// renderWindow coalesces store changes into one output write.
const renderWindow = 50 * time.Millisecond

func init() {
	RegisterCommand(&Command{
		Name:  "watch",
		Short: "Re-render a page whenever its data changes",
		Long: `Render a page, then keep the output current.

Data files are watched for writes and removals. Removing a file removes
its source. Feeds configured in databind.yaml stream socket.io events
into their sources. Every change re-renders the output.

Flags:
  -d, --data GLOB    Data file pattern (repeatable, ** supported)
  -o, --out FILE     Output file (required)
  --preview          Render with preview handlers`,
		Usage: "databind watch <page.html> --out FILE [--data GLOB]...",
		Run:   runWatch,
	})
}

func runWatch(args []string) error {
	opts, err := parsePageArgs(args)
	if err != nil {
		return err
	}
	if opts.out == "" || opts.out == "-" {
		return fmt.Errorf("--out is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(stdout, "Watching %s -> %s (Ctrl+C to stop)...\n", opts.page, opts.out)
	if err := watch(ctx, opts, nil); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "\nWatch stopped.")
	return nil
}

// watch runs until ctx ends. ready, when set, is called on the loop
// goroutine once the first render is written.
func watch(ctx context.Context, opts pageOptions, ready func()) error {
	loop := frame.NewLoop()
	refresh := &frame.Timer{Dispatch: loop.Dispatch}
	defer refresh.Stop()

	s, err := openSession(opts, refresh)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.write(opts.out); err != nil {
		return err
	}

	render := &frame.Timer{Window: renderWindow, Dispatch: loop.Dispatch}
	defer render.Stop()
	renders := frame.NewOwner(render)
	removeListener := s.engine.Store().OnChange(func(string) {
		renders.Schedule("render", func() {
			s.settle()
			if err := s.write(opts.out); err != nil {
				slog.Error("render failed", "out", opts.out, "error", err)
				return
			}
			slog.Info("rendered", "out", opts.out)
		})
	})
	defer removeListener()

	if len(s.patterns) > 0 {
		w, err := datafile.NewWatcher(s.engine.Store(), datafile.WatcherConfig{
			Patterns: s.patterns,
			Dispatch: loop.Dispatch,
		})
		if err != nil {
			return err
		}
		w.OnReload = func(sources []string) {
			slog.Info("data reloaded", "sources", sources)
		}
		if err := w.Start(ctx); err != nil {
			w.Close()
			return err
		}
		defer w.Close()
	}

	for _, cfg := range s.options.Feeds {
		f, err := feed.New(s.engine.Store(), cfg, feed.WithDispatch(loop.Dispatch))
		if err != nil {
			return err
		}
		defer f.Close()
		go func() {
			err := f.Connect(ctx)
			if err == nil || ctx.Err() != nil {
				return
			}
			var bindErr *errors.BindError
			if !errors.As(err, &bindErr) {
				bindErr = &errors.BindError{Op: "feed.Connect", Kind: errors.KindLoad, Err: err, Source: cfg.URL}
			}
			errors.Report(bindErr)
		}()
	}

	if ready != nil {
		loop.Dispatch(ready)
	}
	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
