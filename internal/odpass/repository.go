package odpass

import (
	"context"
	"sort"

	"github.com/benmeehan/attendance-agent/internal/models"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Repository persists OD passes.
type Repository interface {
	Save(ctx context.Context, pass models.ODPass) error
	Get(ctx context.Context, id string) (models.ODPass, error)
	List(ctx context.Context) ([]models.ODPass, error)
}

// MemoryRepository keeps passes in a concurrent map for the lifetime of the process.
type MemoryRepository struct {
	passes cmap.ConcurrentMap[string, models.ODPass]
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{passes: cmap.New[models.ODPass]()}
}

func (r *MemoryRepository) Save(_ context.Context, pass models.ODPass) error {
	r.passes.Set(pass.ID, pass)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (models.ODPass, error) {
	pass, ok := r.passes.Get(id)
	if !ok {
		return models.ODPass{}, ErrPassNotFound
	}
	return pass, nil
}

// List returns every pass, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]models.ODPass, error) {
	out := make([]models.ODPass, 0, r.passes.Count())
	for _, pass := range r.passes.Items() {
		out = append(out, pass)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
