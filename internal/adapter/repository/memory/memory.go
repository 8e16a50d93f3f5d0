// Package memory implements the short link repository on top of a process-local map.
// Entries live as long as the process does.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vadimbarashkov/short-link/internal/entity"
)

// LinkRepository stores short links in a map keyed by code.
//
// Every mutation happens under the write lock, so check-and-insert in Save and the
// counter update in RetrieveAndUpdateStats are atomic. Callers always receive copies.
type LinkRepository struct {
	mu    sync.RWMutex
	links map[string]*entity.ShortLink
	now   func() time.Time
}

// Option configures a LinkRepository.
type Option func(*LinkRepository)

// WithClock replaces time.Now as the source of timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *LinkRepository) {
		r.now = now
	}
}

func NewLinkRepository(opts ...Option) *LinkRepository {
	r := &LinkRepository{
		links: make(map[string]*entity.ShortLink),
		now:   time.Now,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *LinkRepository) Save(ctx context.Context, code, originalURL string) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.LinkRepository.Save"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[code]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrCodeExists)
	}

	link := &entity.ShortLink{
		Code:        code,
		OriginalURL: originalURL,
		CreatedAt:   r.now().UTC(),
	}
	r.links[code] = link

	return link.Clone(), nil
}

func (r *LinkRepository) RetrieveByCode(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.LinkRepository.RetrieveByCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[code]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return link.Clone(), nil
}

func (r *LinkRepository) RetrieveAndUpdateStats(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.LinkRepository.RetrieveAndUpdateStats"

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	accessedAt := r.now().UTC()
	link.VisitCount++
	link.LastAccessedAt = &accessedAt

	return link.Clone(), nil
}

func (r *LinkRepository) Remove(ctx context.Context, code string) (*entity.ShortLink, error) {
	const op = "adapter.repository.memory.LinkRepository.Remove"

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}
	delete(r.links, code)

	return link, nil
}

// Len returns the number of live links.
func (r *LinkRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.links)
}
