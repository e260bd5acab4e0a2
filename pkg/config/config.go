// Package config holds the binding engine options and reads them from
// databind.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	berrors "github.com/go-drift/databind/pkg/errors"
)

// EngineVersion is the version "requires" is checked against.
const EngineVersion = "v1.2.7"

// FileName is the optional options file looked up by LoadOptional.
const FileName = "databind.yaml"

// Options are the engine settings. Every field has a usable default; see
// Default.
type Options struct {
	// DefaultSource is used when neither the key nor an ancestor names a source.
	DefaultSource string `yaml:"default_source,omitempty"`
	// DefaultHandler is used when an element names no handler.
	DefaultHandler string `yaml:"default_handler,omitempty"`
	// CustomDataSource is the reserved source name served from the
	// document's custom data instead of the store.
	CustomDataSource string `yaml:"custom_data_source,omitempty"`
	// AttributePrefix is the common prefix of every directive attribute.
	AttributePrefix string `yaml:"attribute_prefix,omitempty"`

	ResolveVariables   bool `yaml:"resolve_variables"`
	MergeDataset       bool `yaml:"merge_dataset"`
	AutoInterpolate    bool `yaml:"auto_interpolate"`
	AllowDataFunctions bool `yaml:"allow_data_functions"`
	RefreshOnSetData   bool `yaml:"refresh_on_set_data"`
	DebounceObserver   bool `yaml:"debounce_observer"`
	DebounceSetData    bool `yaml:"debounce_set_data"`

	// Redirects maps alias source names to real ones.
	Redirects map[string]string `yaml:"redirects,omitempty"`
	// Preview selects authoring-preview behavior.
	Preview bool `yaml:"preview"`
	// Requires is the minimum engine version, e.g. "v1.2".
	Requires string `yaml:"requires,omitempty"`
	// DataFiles are glob patterns of data files to load as sources.
	DataFiles []string `yaml:"data_files,omitempty"`
	// Feeds are live socket.io sources.
	Feeds []Feed `yaml:"feeds,omitempty"`
}

// Default returns the default options.
func Default() Options {
	return Options{
		DefaultSource:      "shared",
		DefaultHandler:     "text",
		CustomDataSource:   "customData",
		AttributePrefix:    "data-magic",
		ResolveVariables:   true,
		MergeDataset:       true,
		AutoInterpolate:    true,
		AllowDataFunctions: true,
		RefreshOnSetData:   true,
		DebounceObserver:   true,
		DebounceSetData:    true,
	}
}

// LoadOptional reads databind.yaml from dir if present. A missing file
// yields the defaults.
func LoadOptional(dir string) (Options, error) {
	opts, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return opts, err
}

// Load reads and resolves an options file. Keys absent from the file keep
// their defaults.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	opts := Default()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, &berrors.BindError{
			Op:     "config.Load",
			Kind:   berrors.KindConfig,
			Err:    fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err),
			Source: path,
		}
	}
	return Resolve(opts)
}

// Resolve fills empty names with defaults and checks the version gate.
func Resolve(opts Options) (Options, error) {
	def := Default()
	fill := func(v *string, fallback string) {
		*v = strings.TrimSpace(*v)
		if *v == "" {
			*v = fallback
		}
	}
	fill(&opts.DefaultSource, def.DefaultSource)
	fill(&opts.DefaultHandler, def.DefaultHandler)
	fill(&opts.CustomDataSource, def.CustomDataSource)
	fill(&opts.AttributePrefix, def.AttributePrefix)
	opts.AttributePrefix = strings.TrimSuffix(opts.AttributePrefix, "-")

	if err := checkRequires(opts.Requires); err != nil {
		return Options{}, err
	}
	for _, feed := range opts.Feeds {
		if err := feed.Validate(); err != nil {
			return Options{}, &berrors.BindError{Op: "config.Resolve", Kind: berrors.KindConfig, Err: err, Source: feed.URL}
		}
	}
	return opts, nil
}

func checkRequires(requires string) error {
	requires = strings.TrimSpace(requires)
	if requires == "" {
		return nil
	}
	if !strings.HasPrefix(requires, "v") {
		requires = "v" + requires
	}
	if !semver.IsValid(requires) {
		return &berrors.BindError{
			Op:   "config.Resolve",
			Kind: berrors.KindConfig,
			Err:  fmt.Errorf("invalid requires version %q", requires),
		}
	}
	if semver.Compare(EngineVersion, requires) < 0 {
		return &berrors.BindError{
			Op:   "config.Resolve",
			Kind: berrors.KindConfig,
			Err:  fmt.Errorf("requires %s, engine is %s: %w", requires, EngineVersion, berrors.ErrIncompatibleVersion),
		}
	}
	return nil
}

// AttributeNames are the directive attribute names derived from a prefix.
type AttributeNames struct {
	Key       string
	Source    string
	Branch    string
	Handler   string
	Prefix    string
	Append    string
	Sets      string
	Attribute string
	Initial   string
}

// Attributes returns the directive names for opts.AttributePrefix.
func (o Options) Attributes() AttributeNames {
	p := strings.TrimSuffix(strings.TrimSpace(o.AttributePrefix), "-")
	if p == "" {
		p = Default().AttributePrefix
	}
	return AttributeNames{
		Key:       p + "-key",
		Source:    p + "-source",
		Branch:    p + "-branch",
		Handler:   p + "-handler",
		Prefix:    p + "-prefix",
		Append:    p + "-append",
		Sets:      p + "-sets",
		Attribute: p + "-attribute",
		Initial:   p + "-key-initial",
	}
}

// Observed returns the attributes whose changes re-run a binding.
func (n AttributeNames) Observed() []string {
	return []string{n.Key, n.Source, n.Branch, n.Handler, n.Prefix, n.Append}
}
