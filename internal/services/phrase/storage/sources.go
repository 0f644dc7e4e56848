package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
)

// Tables serves stored roll tables to the dice roller.
type Tables struct {
	Store RollTableStore
}

// RollTable implements dice.TableSource.
func (t Tables) RollTable(ctx context.Context, name string) (dice.Table, error) {
	table, err := t.Store.GetRollTable(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return dice.Table{}, fmt.Errorf("%w: %s", engine.ErrTableNotFound, name)
	}
	return table, err
}

// RollTableNames implements dice.TableSource.
func (t Tables) RollTableNames(ctx context.Context) ([]string, error) {
	return t.Store.ListRollTableNames(ctx)
}

// Templates serves stored prompt templates to the engine.
type Templates struct {
	Store PromptTemplateStore
}

// PromptTemplate implements engine.TemplateSource.
func (t Templates) PromptTemplate(ctx context.Context, name string) (engine.PromptTemplate, error) {
	tpl, err := t.Store.GetPromptTemplate(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return engine.PromptTemplate{}, fmt.Errorf("%w: %s", engine.ErrTemplateNotFound, name)
	}
	return tpl, err
}

// TemplateNames implements engine.TemplateSource.
func (t Templates) TemplateNames(ctx context.Context) ([]string, error) {
	return t.Store.ListPromptTemplateNames(ctx)
}
