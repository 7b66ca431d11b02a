package store

import (
	"context"
	"fmt"

	"coin-service/internal/repository"
)

// Repository adapts the SQL entry repository to Store. Writes are tagged with
// origin so pollers can attribute them.
type Repository struct {
	repo   *repository.EntryRepository
	origin string
}

func NewRepository(repo *repository.EntryRepository, origin string) *Repository {
	return &Repository{repo: repo, origin: origin}
}

func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := r.repo.GetEntry(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	if entry == nil {
		return "", false, nil
	}
	return entry.Value, true, nil
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	if err := r.repo.SaveEntry(ctx, key, value, r.origin); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
