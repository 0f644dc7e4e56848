// Package directory resolves entity tokens used by phrases against the
// entity store.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/storage"
)

// Entity is a stored entity bound to its store. Updates are written through
// to the store and mirrored in the loaded properties.
type Entity struct {
	store storage.EntityStore

	mu     sync.Mutex
	record storage.Entity
}

var _ engine.Entity = (*Entity)(nil)

// NewEntity binds a stored record to its store.
func NewEntity(store storage.EntityStore, record storage.Entity) *Entity {
	if record.Props == nil {
		record.Props = map[string]any{}
	}
	return &Entity{store: store, record: record}
}

// ID returns the entity id.
func (e *Entity) ID() string { return e.record.ID }

// Name returns the entity name.
func (e *Entity) Name() string { return e.record.Name }

// ParentID returns the id of the entity this one is attached to.
func (e *Entity) ParentID() string { return e.record.ParentID }

// Props returns a deep copy of the entity properties.
func (e *Entity) Props() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return engine.CloneProps(e.record.Props)
}

// Update writes value at the dotted property path.
func (e *Entity) Update(ctx context.Context, path string, value any) error {
	if e.store == nil {
		return fmt.Errorf("entity %s is read-only", e.record.Name)
	}
	if err := e.store.UpdateEntityProp(ctx, e.record.ID, path, value); err != nil {
		return fmt.Errorf("update entity %s: %w", e.record.Name, err)
	}
	e.mu.Lock()
	engine.SetPath(e.record.Props, path, value)
	e.mu.Unlock()
	return nil
}

// Directory implements engine.EntityResolver. Selected and Target hold the
// ids of the entities the caller has selected and targeted, if any.
type Directory struct {
	Store    storage.EntityStore
	Selected string
	Target   string
}

var _ engine.EntityResolver = (*Directory)(nil)

// Load returns the entity with the given id.
func (d *Directory) Load(ctx context.Context, id string) (*Entity, error) {
	record, err := d.Store.GetEntity(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", engine.ErrEntityNotFound, id)
		}
		return nil, err
	}
	return NewEntity(d.Store, record), nil
}

// ResolveEntity resolves "selected", "target" and "attached" from the
// directory state and the trigger, and anything else as an entity name.
func (d *Directory) ResolveEntity(ctx context.Context, token string, trigger engine.Entity) (engine.Entity, error) {
	if d == nil || d.Store == nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrEntityNotFound, token)
	}
	token = strings.TrimSpace(token)
	switch token {
	case "selected":
		return d.byID(ctx, token, d.Selected)
	case "target":
		return d.byID(ctx, token, d.Target)
	case "attached":
		parent := ""
		if owned, ok := trigger.(*Entity); ok {
			parent = owned.ParentID()
		}
		return d.byID(ctx, token, parent)
	}

	record, err := d.Store.GetEntityByName(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, d.missing(ctx, token)
	}
	if err != nil {
		return nil, err
	}
	return NewEntity(d.Store, record), nil
}

func (d *Directory) byID(ctx context.Context, token, id string) (engine.Entity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: nothing is %s", engine.ErrEntityNotFound, token)
	}
	entity, err := d.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (d *Directory) missing(ctx context.Context, name string) error {
	names, err := d.Store.ListEntityNames(ctx)
	if err == nil {
		if suggestion := engine.Suggest(name, names); suggestion != "" {
			return fmt.Errorf("%w: %s (did you mean %s?)", engine.ErrEntityNotFound, name, suggestion)
		}
	}
	return fmt.Errorf("%w: %s", engine.ErrEntityNotFound, name)
}
