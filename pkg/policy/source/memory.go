package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"mercator-hq/mixer/pkg/schema"
)

// ErrEmpty is returned by MemorySource.Load before any configuration is set.
var ErrEmpty = errors.New("no configuration set")

// MemorySource serves a configuration held in memory. The configuration
// must not be modified after Set.
type MemorySource struct {
	mu     sync.RWMutex
	bundle *Bundle
}

// NewMemorySource creates a source serving cfg. A nil cfg leaves the source
// empty.
func NewMemorySource(cfg *schema.Config) *MemorySource {
	s := &MemorySource{}
	if cfg != nil {
		_ = s.Set(cfg)
	}
	return s
}

// Set replaces the served configuration.
func (s *MemorySource) Set(cfg *schema.Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	data, err := schema.EncodeJSON(cfg)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(data)

	s.mu.Lock()
	s.bundle = &Bundle{
		Config:   cfg,
		Revision: hex.EncodeToString(sum[:])[:16],
		LoadedAt: time.Now(),
	}
	s.mu.Unlock()
	return nil
}

// Load implements Source.
func (s *MemorySource) Load(ctx context.Context) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bundle == nil {
		return nil, ErrEmpty
	}
	b := *s.bundle
	return &b, nil
}

// String implements Source.
func (s *MemorySource) String() string {
	return "memory"
}
