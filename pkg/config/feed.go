package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Feed describes a live socket.io data feed.
type Feed struct {
	// URL of the socket.io endpoint, e.g. "http://localhost:3000/socket.io/".
	URL string `yaml:"url"`
	// Namespace defaults to "/".
	Namespace string `yaml:"namespace,omitempty"`
	// Events maps event names to the source each event writes.
	Events map[string]string `yaml:"events"`
	// Paths optionally writes an event below a key path of its source
	// instead of replacing the whole source.
	Paths map[string]string `yaml:"paths,omitempty"`
	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
	// ConnectTimeout bounds the wait for the first connection, e.g. "10s".
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty"`
}

// Validate reports configuration errors.
func (f Feed) Validate() error {
	if f.URL == "" {
		return fmt.Errorf("feed url is required")
	}
	u, err := url.Parse(f.URL)
	if err != nil {
		return fmt.Errorf("failed to parse feed url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feed url %q must be absolute", f.URL)
	}
	if len(f.Events) == 0 {
		return fmt.Errorf("feed %s maps no events", f.URL)
	}
	for event, source := range f.Events {
		if strings.TrimSpace(event) == "" || strings.TrimSpace(source) == "" {
			return fmt.Errorf("feed %s has an empty event or source name", f.URL)
		}
	}
	return nil
}
