package source

import (
	"context"
	"time"

	"mercator-hq/mixer/pkg/schema"
)

// Source produces configuration.
type Source interface {
	// Load reads the current configuration.
	Load(ctx context.Context) (*Bundle, error)

	// String describes the source for logs.
	String() string
}

// Bundle is one loaded configuration and where it came from.
type Bundle struct {
	// Config is the merged configuration.
	Config *schema.Config

	// Revision identifies the content. Identical content yields the same
	// revision.
	Revision string

	// Files lists the files merged into Config, in merge order.
	Files []string

	// LoadedAt is when the bundle was read.
	LoadedAt time.Time
}
