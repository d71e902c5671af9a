package internal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lychee-technology/catalogue"
)

// EntityLoader fetches one record of a registered entity type.
type EntityLoader func(ctx context.Context, id int64) (catalogue.Entity, error)

// EntityRegistry maps entity type tags to loaders. It implements
// catalogue.EntityResolver.
type EntityRegistry struct {
	mu      sync.RWMutex
	loaders map[string]EntityLoader
}

func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{loaders: make(map[string]EntityLoader)}
}

// Register installs the loader for a type tag, replacing any previous one.
func (r *EntityRegistry) Register(typeTag string, loader EntityLoader) error {
	if typeTag == "" {
		return fmt.Errorf("entity type tag cannot be empty")
	}
	if loader == nil {
		return fmt.Errorf("loader for entity type %s cannot be nil", typeTag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[typeTag] = loader
	return nil
}

// Types returns the registered type tags in sorted order.
func (r *EntityRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.loaders))
	for tag := range r.loaders {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func (r *EntityRegistry) Resolve(ctx context.Context, ref catalogue.EntityRef) (catalogue.Entity, error) {
	r.mu.RLock()
	loader, ok := r.loaders[ref.Tag]
	r.mu.RUnlock()
	if !ok {
		return nil, catalogue.NewNotFoundError(catalogue.ErrCodeEntityNotFound,
			fmt.Sprintf("unknown entity type %q", ref.Tag)).WithDetail("ref", ref.String())
	}
	entity, err := loader(ctx, ref.ID)
	if err != nil {
		if catalogue.IsNotFound(err) {
			return nil, catalogue.NewNotFoundError(catalogue.ErrCodeEntityNotFound,
				fmt.Sprintf("entity %s not found", ref)).WithCause(err)
		}
		return nil, fmt.Errorf("failed to load entity %s: %w", ref, err)
	}
	return entity, nil
}
