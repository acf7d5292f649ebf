package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/store"
)

const selectColumns = `
	id, owner_id, title, industry, status, date_created, last_updated,
	summary, root_cause, impact, category, recommendation,
	do_list, dont_list, prevention_checklist, tags, is_published`

// Repository is the SQLite persistence adapter.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ store.Repository = (*Repository)(nil)

// NewRepository wraps an initialized database.
func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{db: db, logger: logger.With(zap.String("backend", "sqlite"))}
}

// ListByOwner returns the owner's entries, newest first.
func (r *Repository) ListByOwner(ctx context.Context, owner string) ([]playbook.Entry, error) {
	query := `SELECT ` + selectColumns + `
		FROM playbook_entries
		WHERE owner_id = ?
		ORDER BY last_updated DESC, id DESC`

	entries, err := r.query(ctx, query, owner)
	if err != nil {
		r.logger.Error("error fetching entries", zap.String("owner", owner), zap.Error(err))
		return []playbook.Entry{}, errors.NewPersistenceFailed("load", err)
	}
	return entries, nil
}

// ListPublished returns every owner's published entries, newest first.
func (r *Repository) ListPublished(ctx context.Context) ([]playbook.Entry, error) {
	query := `SELECT ` + selectColumns + `
		FROM playbook_entries
		WHERE is_published = 1
		ORDER BY last_updated DESC, id DESC`

	entries, err := r.query(ctx, query)
	if err != nil {
		r.logger.Error("error fetching published entries", zap.Error(err))
		return []playbook.Entry{}, errors.NewPersistenceFailed("load published", err)
	}
	return entries, nil
}

// Get returns one of the owner's entries.
func (r *Repository) Get(ctx context.Context, owner, id string) (*playbook.Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM playbook_entries WHERE id = ? AND owner_id = ?`

	row := r.db.QueryRowContext(ctx, query, id, owner)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		r.logger.Error("error fetching entry", zap.String("id", id), zap.Error(err))
		return nil, errors.NewPersistenceFailed("load", err)
	}
	return e, nil
}

// Create inserts one entry and returns the stored row.
func (r *Repository) Create(ctx context.Context, owner string, e playbook.Entry) (*playbook.Entry, error) {
	row := playbook.ToRow(owner, e)

	lists, err := encodeLists(row.DoList, row.DontList, row.PreventionChecklist, row.Tags)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	query := `
		INSERT INTO playbook_entries (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		row.ID, row.OwnerID, row.Title, row.Industry, row.Status, row.DateCreated, row.LastUpdated,
		row.Summary, row.RootCause, row.Impact, row.Category, row.Recommendation,
		lists[0], lists[1], lists[2], lists[3], row.IsPublished,
	)
	if err != nil {
		r.logger.Error("error creating entry", zap.String("id", e.ID), zap.Error(err))
		return nil, errors.NewPersistenceFailed("create", err)
	}

	return r.Get(ctx, owner, e.ID)
}

// Update writes only the fields present in p and returns the updated row.
func (r *Repository) Update(ctx context.Context, owner, id string, p playbook.Patch) (*playbook.Entry, error) {
	cols := playbook.PatchColumns(p)
	if len(cols) == 0 {
		return r.Get(ctx, owner, id)
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+2)
	for _, c := range cols {
		v := c.Value
		if list, ok := v.([]string); ok {
			data, err := json.Marshal(list)
			if err != nil {
				return nil, errors.NewInternal(err)
			}
			v = string(data)
		}
		sets = append(sets, c.Name+" = ?")
		args = append(args, v)
	}
	args = append(args, id, owner)

	query := fmt.Sprintf(`UPDATE playbook_entries SET %s WHERE id = ? AND owner_id = ?`, strings.Join(sets, ", "))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("error updating entry", zap.String("id", id), zap.Error(err))
		return nil, errors.NewPersistenceFailed("update", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewPersistenceFailed("update", err)
	}
	if rowsAffected == 0 {
		return nil, errors.NewNotFound(id)
	}

	return r.Get(ctx, owner, id)
}

// Delete removes an entry by id. Unknown ids are not an error.
func (r *Repository) Delete(ctx context.Context, owner, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM playbook_entries WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		r.logger.Error("error deleting entry", zap.String("id", id), zap.Error(err))
		return errors.NewPersistenceFailed("delete", err)
	}
	return nil
}

func (r *Repository) query(ctx context.Context, query string, args ...any) ([]playbook.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]playbook.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a single row into an Entry.
func scanEntry(s scanner) (*playbook.Entry, error) {
	var (
		row                                playbook.Row
		doList, dontList, prevention, tags string
	)

	err := s.Scan(
		&row.ID, &row.OwnerID, &row.Title, &row.Industry, &row.Status, &row.DateCreated, &row.LastUpdated,
		&row.Summary, &row.RootCause, &row.Impact, &row.Category, &row.Recommendation,
		&doList, &dontList, &prevention, &tags, &row.IsPublished,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{doList, &row.DoList},
		{dontList, &row.DontList},
		{prevention, &row.PreventionChecklist},
		{tags, &row.Tags},
	} {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, err
		}
	}

	e := row.ToEntry()
	return &e, nil
}

// encodeLists marshals each list as a JSON array string.
func encodeLists(lists ...[]string) ([]string, error) {
	out := make([]string, len(lists))
	for i, l := range lists {
		data, err := json.Marshal(l)
		if err != nil {
			return nil, err
		}
		out[i] = string(data)
	}
	return out, nil
}
