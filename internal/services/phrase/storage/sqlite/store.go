// Package sqlite provides a SQLite-backed phrase storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/sheetphrase/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/storage"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists entities, roll tables and prompt templates in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite phrase store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(context.Background(), sqlDB, migrationFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutEntity upserts an entity by id.
func (s *Store) PutEntity(ctx context.Context, entity storage.Entity) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(entity.ID)
	name := strings.TrimSpace(entity.Name)
	if id == "" {
		return fmt.Errorf("entity id is required")
	}
	if name == "" {
		return fmt.Errorf("entity name is required")
	}
	props := entity.Props
	if props == nil {
		props = map[string]any{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode entity props: %w", err)
	}
	now := s.now()
	createdAt := entity.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO entities (id, name, parent_id, props_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   parent_id = excluded.parent_id,
		   props_json = excluded.props_json,
		   updated_at = excluded.updated_at`,
		id,
		name,
		strings.TrimSpace(entity.ParentID),
		string(propsJSON),
		toMillis(createdAt),
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("put entity: %w", err)
	}
	return nil
}

// GetEntity returns an entity by id.
func (s *Store) GetEntity(ctx context.Context, id string) (storage.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Entity{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, parent_id, props_json, created_at, updated_at
		 FROM entities WHERE id = ?`,
		strings.TrimSpace(id),
	)
	return scanEntity(row)
}

// GetEntityByName returns an entity by name, ignoring case.
func (s *Store) GetEntityByName(ctx context.Context, name string) (storage.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Entity{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, parent_id, props_json, created_at, updated_at
		 FROM entities WHERE name = ? COLLATE NOCASE
		 ORDER BY name = ? DESC
		 LIMIT 1`,
		strings.TrimSpace(name),
		strings.TrimSpace(name),
	)
	return scanEntity(row)
}

// ListEntityNames returns every entity name in order.
func (s *Store) ListEntityNames(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listNames(ctx, `SELECT name FROM entities ORDER BY name`)
}

// UpdateEntityProp writes value at the dotted path of the entity props in
// one transaction.
func (s *Store) UpdateEntityProp(ctx context.Context, id string, path string, value any) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("property path is required")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entity update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var propsJSON string
	err = tx.QueryRowContext(ctx, `SELECT props_json FROM entities WHERE id = ?`, id).Scan(&propsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("load entity props: %w", err)
	}
	props := map[string]any{}
	if err := json.Unmarshal([]byte(propsJSON), &props); err != nil {
		return fmt.Errorf("decode entity props: %w", err)
	}
	engine.SetPath(props, path, value)
	updated, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode entity props: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE entities SET props_json = ?, updated_at = ? WHERE id = ?`,
		string(updated),
		toMillis(s.now()),
		id,
	); err != nil {
		return fmt.Errorf("update entity props: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entity update: %w", err)
	}
	return nil
}

// PutRollTable upserts a roll table after validating it.
func (s *Store) PutRollTable(ctx context.Context, table dice.Table) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return err
	}
	entriesJSON, err := json.Marshal(table.Entries)
	if err != nil {
		return fmt.Errorf("encode roll table entries: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO roll_tables (name, formula, entries_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   formula = excluded.formula,
		   entries_json = excluded.entries_json,
		   updated_at = excluded.updated_at`,
		strings.TrimSpace(table.Name),
		table.Formula,
		string(entriesJSON),
		toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put roll table: %w", err)
	}
	return nil
}

// GetRollTable returns a roll table by name.
func (s *Store) GetRollTable(ctx context.Context, name string) (dice.Table, error) {
	if err := s.ready(ctx); err != nil {
		return dice.Table{}, err
	}
	var (
		table       dice.Table
		entriesJSON string
	)
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT name, formula, entries_json FROM roll_tables WHERE name = ?`,
		strings.TrimSpace(name),
	).Scan(&table.Name, &table.Formula, &entriesJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dice.Table{}, storage.ErrNotFound
		}
		return dice.Table{}, fmt.Errorf("get roll table: %w", err)
	}
	if err := json.Unmarshal([]byte(entriesJSON), &table.Entries); err != nil {
		return dice.Table{}, fmt.Errorf("decode roll table entries: %w", err)
	}
	return table, nil
}

// ListRollTableNames returns every roll table name in order.
func (s *Store) ListRollTableNames(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listNames(ctx, `SELECT name FROM roll_tables ORDER BY name`)
}

// PutPromptTemplate upserts a prompt template.
func (s *Store) PutPromptTemplate(ctx context.Context, tpl engine.PromptTemplate) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	name := strings.TrimSpace(tpl.Name)
	if name == "" {
		return fmt.Errorf("prompt template name is required")
	}
	fields := tpl.Fields
	if fields == nil {
		fields = []engine.Field{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode prompt template fields: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO prompt_templates (name, title, fields_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   title = excluded.title,
		   fields_json = excluded.fields_json,
		   updated_at = excluded.updated_at`,
		name,
		tpl.Title,
		string(fieldsJSON),
		toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("put prompt template: %w", err)
	}
	return nil
}

// GetPromptTemplate returns a prompt template by name.
func (s *Store) GetPromptTemplate(ctx context.Context, name string) (engine.PromptTemplate, error) {
	if err := s.ready(ctx); err != nil {
		return engine.PromptTemplate{}, err
	}
	var (
		tpl        engine.PromptTemplate
		fieldsJSON string
	)
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT name, title, fields_json FROM prompt_templates WHERE name = ?`,
		strings.TrimSpace(name),
	).Scan(&tpl.Name, &tpl.Title, &fieldsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.PromptTemplate{}, storage.ErrNotFound
		}
		return engine.PromptTemplate{}, fmt.Errorf("get prompt template: %w", err)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &tpl.Fields); err != nil {
		return engine.PromptTemplate{}, fmt.Errorf("decode prompt template fields: %w", err)
	}
	return tpl, nil
}

// ListPromptTemplateNames returns every prompt template name in order.
func (s *Store) ListPromptTemplateNames(ctx context.Context) ([]string, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	return s.listNames(ctx, `SELECT name FROM prompt_templates ORDER BY name`)
}

func (s *Store) listNames(ctx context.Context, query string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate names: %w", err)
	}
	return names, nil
}

func scanEntity(row *sql.Row) (storage.Entity, error) {
	var (
		entity    storage.Entity
		propsJSON string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&entity.ID, &entity.Name, &entity.ParentID, &propsJSON, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Entity{}, storage.ErrNotFound
		}
		return storage.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	entity.Props = map[string]any{}
	if err := json.Unmarshal([]byte(propsJSON), &entity.Props); err != nil {
		return storage.Entity{}, fmt.Errorf("decode entity props: %w", err)
	}
	entity.CreatedAt = fromMillis(createdAt)
	entity.UpdatedAt = fromMillis(updatedAt)
	return entity, nil
}
