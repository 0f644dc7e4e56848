// Package storage defines persistence contracts for the collaborators a
// phrase computation reads: entities, roll tables and prompt templates.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// Entity is a persisted property bag such as a character or an item. ParentID
// names the entity it is attached to, if any.
type Entity struct {
	ID        string
	Name      string
	ParentID  string
	Props     map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntityStore persists entities.
type EntityStore interface {
	PutEntity(ctx context.Context, entity Entity) error
	GetEntity(ctx context.Context, id string) (Entity, error)
	GetEntityByName(ctx context.Context, name string) (Entity, error)
	ListEntityNames(ctx context.Context) ([]string, error)
	// UpdateEntityProp writes value at the dotted path of the entity props.
	UpdateEntityProp(ctx context.Context, id string, path string, value any) error
}

// RollTableStore persists roll tables.
type RollTableStore interface {
	PutRollTable(ctx context.Context, table dice.Table) error
	GetRollTable(ctx context.Context, name string) (dice.Table, error)
	ListRollTableNames(ctx context.Context) ([]string, error)
}

// PromptTemplateStore persists prompt templates.
type PromptTemplateStore interface {
	PutPromptTemplate(ctx context.Context, tpl engine.PromptTemplate) error
	GetPromptTemplate(ctx context.Context, name string) (engine.PromptTemplate, error)
	ListPromptTemplateNames(ctx context.Context) ([]string, error)
}

// Store is the full phrase persistence surface.
type Store interface {
	EntityStore
	RollTableStore
	PromptTemplateStore
	Close() error
}
