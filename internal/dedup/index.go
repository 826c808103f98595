// Package dedup tracks which identity keys have already been published.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/ounols/jekyll-news/internal/logger"
	"github.com/ounols/jekyll-news/internal/store"
)

// Index answers whether an identity key was published before.
type Index interface {
	Has(ctx context.Context, key string) bool
	Mark(ctx context.Context, key string) error
}

// Memory is an in-process index.
type Memory struct {
	mu   sync.RWMutex
	keys map[string]string
}

var _ Index = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]string)}
}

// Load builds an index from the article_id markers of every post in s.
// Posts without a marker, or whose header cannot be read, are skipped.
func Load(s store.Store, log logger.Logger) (*Memory, error) {
	names, err := s.List()
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	m := NewMemory()
	for _, name := range names {
		marker, err := s.ReadHeader(name)
		if err != nil {
			log.Warn("Skipping unreadable post", logger.String("file", name), logger.Error(err))
			continue
		}
		if marker != "" {
			m.keys[marker] = name
		}
	}

	log.Debug("Loaded identity index",
		logger.Int("posts", len(names)),
		logger.Int("keys", len(m.keys)),
	)
	return m, nil
}

func (m *Memory) Has(_ context.Context, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[key]
	return ok
}

func (m *Memory) Mark(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; !ok {
		m.keys[key] = ""
	}
	return nil
}

// File returns the post name recorded for key, if it came from the store scan.
func (m *Memory) File(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.keys[key]
	return name, ok && name != ""
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Chain consults several indexes: Has is true if any has the key; Mark
// writes to all of them and returns the first error.
type Chain []Index

var _ Index = Chain(nil)

func (c Chain) Has(ctx context.Context, key string) bool {
	for _, idx := range c {
		if idx.Has(ctx, key) {
			return true
		}
	}
	return false
}

func (c Chain) Mark(ctx context.Context, key string) error {
	var first error
	for _, idx := range c {
		if err := idx.Mark(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	return first
}
