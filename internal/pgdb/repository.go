package pgdb

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/store"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectColumns = `id, owner_id, title, industry, status, date_created, last_updated,
	summary, root_cause, impact, category, recommendation,
	do_list, dont_list, prevention_checklist, tags, is_published`

// PostgresRepository implements store.Repository on postgres.
type PostgresRepository struct {
	db     DBTX
	logger *zap.Logger
	types  *pgtype.Map
}

var _ store.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wraps db.
func NewPostgresRepository(db DBTX, logger *zap.Logger) *PostgresRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresRepository{
		db:     db,
		logger: logger.With(zap.String("backend", "postgres")),
		types:  pgtype.NewMap(),
	}
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, owner string) ([]playbook.Entry, error) {
	query := `SELECT ` + selectColumns + `
		FROM playbook_entries
		WHERE owner_id = $1
		ORDER BY last_updated DESC, id DESC`

	entries, err := r.query(ctx, query, owner)
	if err != nil {
		r.logger.Error("error fetching entries", zap.String("owner", owner), zap.Error(err))
		return []playbook.Entry{}, errors.NewPersistenceFailed("load", err)
	}
	return entries, nil
}

func (r *PostgresRepository) ListPublished(ctx context.Context) ([]playbook.Entry, error) {
	query := `SELECT ` + selectColumns + `
		FROM playbook_entries
		WHERE is_published
		ORDER BY last_updated DESC, id DESC`

	entries, err := r.query(ctx, query)
	if err != nil {
		r.logger.Error("error fetching published entries", zap.Error(err))
		return []playbook.Entry{}, errors.NewPersistenceFailed("load published", err)
	}
	return entries, nil
}

func (r *PostgresRepository) Get(ctx context.Context, owner, id string) (*playbook.Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM playbook_entries WHERE id = $1 AND owner_id = $2`

	e, err := r.scan(r.db.QueryRowContext(ctx, query, id, owner))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(id)
		}
		r.logger.Error("error fetching entry", zap.String("id", id), zap.Error(err))
		return nil, errors.NewPersistenceFailed("load", err)
	}
	return e, nil
}

func (r *PostgresRepository) Create(ctx context.Context, owner string, e playbook.Entry) (*playbook.Entry, error) {
	row := playbook.ToRow(owner, e)

	query := `INSERT INTO playbook_entries (` + selectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + selectColumns

	stored, err := r.scan(r.db.QueryRowContext(ctx, query,
		row.ID, row.OwnerID, row.Title, row.Industry, row.Status, row.DateCreated, row.LastUpdated,
		row.Summary, row.RootCause, row.Impact, row.Category, row.Recommendation,
		row.DoList, row.DontList, row.PreventionChecklist, row.Tags, row.IsPublished,
	))
	if err != nil {
		r.logger.Error("error creating entry", zap.String("id", e.ID), zap.Error(err))
		return nil, errors.NewPersistenceFailed("create", err)
	}
	return stored, nil
}

func (r *PostgresRepository) Update(ctx context.Context, owner, id string, p playbook.Patch) (*playbook.Entry, error) {
	cols := playbook.PatchColumns(p)
	if len(cols) == 0 {
		return r.Get(ctx, owner, id)
	}

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Name, i+1))
		args = append(args, c.Value)
	}
	args = append(args, id, owner)

	query := fmt.Sprintf(`UPDATE playbook_entries SET %s WHERE id = $%d AND owner_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(cols)+1, len(cols)+2, selectColumns)

	updated, err := r.scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFound(id)
		}
		r.logger.Error("error updating entry", zap.String("id", id), zap.Error(err))
		return nil, errors.NewPersistenceFailed("update", err)
	}
	return updated, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, owner, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM playbook_entries WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		r.logger.Error("error deleting entry", zap.String("id", id), zap.Error(err))
		return errors.NewPersistenceFailed("delete", err)
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]playbook.Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]playbook.Entry, 0)
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scan decodes text[] columns through pgtype since database/sql has no array support.
func (r *PostgresRepository) scan(s scanner) (*playbook.Entry, error) {
	var row playbook.Row
	err := s.Scan(
		&row.ID, &row.OwnerID, &row.Title, &row.Industry, &row.Status, &row.DateCreated, &row.LastUpdated,
		&row.Summary, &row.RootCause, &row.Impact, &row.Category, &row.Recommendation,
		r.types.SQLScanner(&row.DoList),
		r.types.SQLScanner(&row.DontList),
		r.types.SQLScanner(&row.PreventionChecklist),
		r.types.SQLScanner(&row.Tags),
		&row.IsPublished,
	)
	if err != nil {
		return nil, err
	}
	e := row.ToEntry()
	return &e, nil
}
