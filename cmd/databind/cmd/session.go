package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-drift/databind/pkg/bind"
	"github.com/go-drift/databind/pkg/config"
	"github.com/go-drift/databind/pkg/datafile"
	"github.com/go-drift/databind/pkg/frame"
	"github.com/go-drift/databind/pkg/htmlhost"
)

// maxSettle bounds the mutation/refresh rounds run before writing output.
const maxSettle = 32

type pageOptions struct {
	page    string
	data    []string
	out     string
	preview bool
	watch   bool
}

// parsePageArgs reads the flags shared by the page commands. Exactly one
// positional argument, the page, is accepted.
func parsePageArgs(args []string) (pageOptions, error) {
	var opts pageOptions
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--data" || arg == "-d":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a glob pattern", arg)
			}
			opts.data = append(opts.data, args[i+1])
			i++
		case strings.HasPrefix(arg, "--data="):
			opts.data = append(opts.data, strings.TrimPrefix(arg, "--data="))
		case arg == "--out" || arg == "-o":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a file path", arg)
			}
			opts.out = args[i+1]
			i++
		case strings.HasPrefix(arg, "--out="):
			opts.out = strings.TrimPrefix(arg, "--out=")
		case arg == "--preview":
			opts.preview = true
		case arg == "--watch":
			opts.watch = true
		case strings.HasPrefix(arg, "-") && arg != "-":
			return opts, fmt.Errorf("unknown flag %q", arg)
		default:
			positional = append(positional, arg)
		}
	}
	switch len(positional) {
	case 0:
		return opts, fmt.Errorf("page is required")
	case 1:
		opts.page = positional[0]
	default:
		return opts, fmt.Errorf("expected one page, got %d", len(positional))
	}
	return opts, nil
}

// session is a page bound to an engine with its data loaded.
type session struct {
	options  config.Options
	patterns []string
	doc      *htmlhost.Document
	engine   *bind.Engine
}

// openSession loads options, the page, and its data, then binds the page.
// A nil scheduler leaves refreshes to settle.
func openSession(p pageOptions, sched frame.Scheduler) (*session, error) {
	dir := resolveConfigDir()
	opts, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	if p.preview {
		opts.Preview = true
	}

	f, err := os.Open(p.page)
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(p.page), filepath.Ext(p.page))
	doc, err := htmlhost.Parse(name, f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.page, err)
	}

	patterns := append([]string(nil), p.data...)
	for _, pattern := range opts.DataFiles {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(dir, pattern)
		}
		patterns = append(patterns, pattern)
	}

	engine := bind.New(bind.WithOptions(opts), bind.WithScheduler(sched))
	if len(patterns) > 0 {
		if err := datafile.LoadAll(engine.Store(), patterns...); err != nil {
			engine.Close()
			return nil, err
		}
	}

	s := &session{options: engine.Options(), patterns: patterns, doc: doc, engine: engine}
	engine.Enable(doc)
	engine.Refresh(doc, nil)
	s.settle()
	slog.Debug("page bound", "page", p.page, "sources", engine.Store().Sources())
	return s, nil
}

// settle delivers pending attribute mutations and refreshes until the page
// is quiet.
func (s *session) settle() {
	for range maxSettle {
		delivered := s.doc.FlushMutations()
		flushed := s.engine.Flush()
		if delivered == 0 && flushed == 0 {
			return
		}
	}
	slog.Warn("page did not settle", "rounds", maxSettle)
}

// write renders the page to path, or to stdout when path is empty or "-".
func (s *session) write(path string) error {
	if path == "" || path == "-" {
		return s.doc.Render(stdout)
	}
	var buf bytes.Buffer
	if err := s.doc.Render(&buf); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *session) close() {
	s.engine.Close()
}
