package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"image.share/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

type MemoryStore struct {
	links map[string]*models.ShareLink
	mu    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[string]*models.ShareLink),
	}
}

func (s *MemoryStore) Save(ctx context.Context, link *models.ShareLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.ID]; ok {
		return ErrDuplicate
	}
	s.links[link.ID] = link.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.ShareLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	link, ok := s.links[id]
	if !ok {
		return nil, ErrNotFound
	}
	return link.Clone(), nil
}

func (s *MemoryStore) IncrementViews(ctx context.Context, id string, now time.Time) (*models.ShareLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[id]
	if !ok {
		return nil, ErrNotFound
	}
	if link.IsExpired(now) {
		return nil, ErrExpired
	}

	link.ViewCount++
	return link.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.links, id)
	return nil
}

func (s *MemoryStore) Expired(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, link := range s.links {
		if link.IsExpired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.links = make(map[string]*models.ShareLink)
	return nil
}
