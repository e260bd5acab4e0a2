package cmd

import (
	"fmt"
	"iter"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-drift/databind/pkg/config"
	"github.com/go-drift/databind/pkg/datafile"
)

func init() {
	RegisterCommand(&Command{
		Name:  "status",
		Short: "Show the resolved configuration",
		Long: `Show the options read from databind.yaml, the directive attribute
names they produce, the data files the configured patterns match, and
the configured feeds.`,
		Usage: "databind status",
		Run:   runStatus,
	})
}

func runStatus(args []string) error {
	dir := resolveConfigDir()
	opts, err := config.LoadOptional(dir)
	if err != nil {
		return err
	}

	w := stdout
	fmt.Fprintf(w, "Config: %s\n", filepath.Join(dir, config.FileName))
	fmt.Fprintf(w, "Engine: %s", config.EngineVersion)
	if opts.Requires != "" {
		fmt.Fprintf(w, " (requires %s)", opts.Requires)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Options:")
	fmt.Fprintf(w, "  %-22s %s\n", "default source:", opts.DefaultSource)
	fmt.Fprintf(w, "  %-22s %s\n", "default handler:", opts.DefaultHandler)
	fmt.Fprintf(w, "  %-22s %s\n", "custom data source:", opts.CustomDataSource)
	fmt.Fprintf(w, "  %-22s %t\n", "resolve variables:", opts.ResolveVariables)
	fmt.Fprintf(w, "  %-22s %t\n", "merge dataset:", opts.MergeDataset)
	fmt.Fprintf(w, "  %-22s %t\n", "auto interpolate:", opts.AutoInterpolate)
	fmt.Fprintf(w, "  %-22s %t\n", "allow data functions:", opts.AllowDataFunctions)
	fmt.Fprintf(w, "  %-22s %t\n", "refresh on set data:", opts.RefreshOnSetData)
	fmt.Fprintf(w, "  %-22s %t\n", "preview:", opts.Preview)
	for alias, target := range sortedPairs(opts.Redirects) {
		fmt.Fprintf(w, "  %-22s %s -> %s\n", "redirect:", alias, target)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Attributes:")
	fmt.Fprintf(w, "  %s\n", strings.Join(opts.Attributes().Observed(), "\n  "))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Data files:")
	patterns := make([]string, 0, len(opts.DataFiles))
	for _, p := range opts.DataFiles {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		patterns = append(patterns, p)
	}
	files, err := datafile.Expand(patterns...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, f := range files {
		fmt.Fprintf(w, "  %-16s %s\n", datafile.SourceName(f), f)
	}

	if len(opts.Feeds) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Feeds:")
		for _, f := range opts.Feeds {
			events := make([]string, 0, len(f.Events))
			for event, source := range sortedPairs(f.Events) {
				events = append(events, event+"->"+source)
			}
			fmt.Fprintf(w, "  %s %s\n", f.URL, strings.Join(events, " "))
		}
	}
	return nil
}

func sortedPairs(m map[string]string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}
