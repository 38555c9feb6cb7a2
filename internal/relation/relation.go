// Package relation classifies guardian relationship labels. The upstream
// API describes a guardian's link to a student with a free-form label
// ("Pai", "Mãe", "Avó", ...); the detail view groups parents separately
// from other authorized people. The set of labels treated as "parent" is
// configuration, loaded from a YAML document and refreshable at runtime.
package relation

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config is the YAML document shape.
type Config struct {
	// ParentLabels lists the relationship descriptions classified as
	// parents. Matching is exact, as recorded upstream.
	ParentLabels []string `yaml:"parent_labels"`
}

// DefaultConfig returns the compiled-in classification.
func DefaultConfig() Config {
	return Config{ParentLabels: []string{"Pai", "Mãe"}}
}

// Parse decodes and validates a YAML classification document.
func Parse(doc []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(doc, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid relation configuration: %w", err)
	}

	if len(cfg.ParentLabels) == 0 {
		return Config{}, fmt.Errorf("relation configuration must list at least one parent label")
	}

	return cfg, nil
}

// LoadFile reads and parses a classification document from disk.
func LoadFile(path string) (Config, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read relation configuration: %w", err)
	}

	return Parse(doc)
}

// Store holds the active classification, safe for concurrent use. Updates
// replace the classification wholesale.
type Store struct {
	mu      sync.RWMutex
	parents map[string]struct{}
}

// NewStore creates a store populated with the default classification.
func NewStore() *Store {
	s := &Store{}
	s.Update(DefaultConfig())
	return s
}

// Update replaces the active classification.
func (s *Store) Update(cfg Config) {
	parents := make(map[string]struct{}, len(cfg.ParentLabels))
	for _, label := range cfg.ParentLabels {
		parents[label] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents = parents
}

// IsParent reports whether the relationship label is classified as a parent.
func (s *Store) IsParent(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.parents[label]
	return ok
}

// Watch reloads the classification file on an interval until the context is
// cancelled. A failed reload keeps the previous classification in place.
func Watch(ctx context.Context, store *Store, path string, interval time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			log.Info().Interface("recover", r).Msg("relation refresh failed; will attempt to continue.")
		}
	}()

	for {
		cfg, err := LoadFile(path)
		if err != nil {
			// may be transient (partial write, transient mount issue), so
			// keep trying on the next interval
			log.Info().Err(err).Msg("relation configuration refresh failed, continuing")
		} else {
			store.Update(cfg)
		}

		select {
		case <-time.After(interval):
			// continue
		case <-ctx.Done():
			log.Info().Msg("relation refresh shutting down gracefully")
			return
		}
	}
}
