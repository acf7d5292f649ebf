package localstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/store"
)

// KeyEntries holds every owner's entries as a JSON array of rows.
const KeyEntries = "pp_entries"

// Repository stores entries inside the local file under pp_entries.
type Repository struct {
	file   *File
	logger *zap.Logger

	// mu serializes read-modify-write cycles on pp_entries.
	mu sync.Mutex
}

var _ store.Repository = (*Repository)(nil)

// NewRepository returns a repository backed by f.
func NewRepository(f *File, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{file: f, logger: logger.With(zap.String("backend", "local"))}
}

// ListByOwner returns the owner's entries, newest first.
func (r *Repository) ListByOwner(_ context.Context, owner string) ([]playbook.Entry, error) {
	return r.list("load", func(row playbook.Row) bool { return row.OwnerID == owner })
}

// ListPublished returns all published entries, newest first.
func (r *Repository) ListPublished(_ context.Context) ([]playbook.Entry, error) {
	return r.list("load published", func(row playbook.Row) bool { return row.IsPublished })
}

// Get returns one of the owner's entries.
func (r *Repository) Get(_ context.Context, owner, id string) (*playbook.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.load()
	if err != nil {
		return nil, errors.NewPersistenceFailed("load", err)
	}
	i := indexOf(rows, owner, id)
	if i < 0 {
		return nil, errors.NewNotFound(id)
	}
	e := rows[i].ToEntry()
	return &e, nil
}

// Create appends an entry.
func (r *Repository) Create(_ context.Context, owner string, e playbook.Entry) (*playbook.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.load()
	if err != nil {
		return nil, errors.NewPersistenceFailed("create", err)
	}
	for _, row := range rows {
		if row.ID == e.ID {
			return nil, errors.NewPersistenceFailed("create", fmt.Errorf("duplicate id %s", e.ID))
		}
	}

	row := playbook.ToRow(owner, e)
	rows = append(rows, row)
	if err := r.file.putJSON(KeyEntries, rows); err != nil {
		r.logger.Error("error creating entry", zap.String("id", e.ID), zap.Error(err))
		return nil, errors.NewPersistenceFailed("create", err)
	}

	out := row.ToEntry()
	return &out, nil
}

// Update merges p into the stored entry.
func (r *Repository) Update(_ context.Context, owner, id string, p playbook.Patch) (*playbook.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.load()
	if err != nil {
		return nil, errors.NewPersistenceFailed("update", err)
	}
	i := indexOf(rows, owner, id)
	if i < 0 {
		return nil, errors.NewNotFound(id)
	}

	merged := playbook.Apply(rows[i].ToEntry(), p)
	rows[i] = playbook.ToRow(owner, merged)

	if err := r.file.putJSON(KeyEntries, rows); err != nil {
		r.logger.Error("error updating entry", zap.String("id", id), zap.Error(err))
		return nil, errors.NewPersistenceFailed("update", err)
	}
	return &merged, nil
}

// Delete removes an entry. Unknown ids are not an error.
func (r *Repository) Delete(_ context.Context, owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.load()
	if err != nil {
		return errors.NewPersistenceFailed("delete", err)
	}
	i := indexOf(rows, owner, id)
	if i < 0 {
		return nil
	}
	rows = slices.Delete(rows, i, i+1)
	if err := r.file.putJSON(KeyEntries, rows); err != nil {
		r.logger.Error("error deleting entry", zap.String("id", id), zap.Error(err))
		return errors.NewPersistenceFailed("delete", err)
	}
	return nil
}

func (r *Repository) list(op string, keep func(playbook.Row) bool) ([]playbook.Entry, error) {
	r.mu.Lock()
	rows, err := r.load()
	r.mu.Unlock()
	if err != nil {
		r.logger.Error("error fetching entries", zap.Error(err))
		return []playbook.Entry{}, errors.NewPersistenceFailed(op, err)
	}

	entries := make([]playbook.Entry, 0, len(rows))
	for _, row := range rows {
		if keep(row) {
			entries = append(entries, row.ToEntry())
		}
	}
	slices.SortStableFunc(entries, func(a, b playbook.Entry) int {
		return cmp.Compare(b.LastUpdated, a.LastUpdated)
	})
	return entries, nil
}

// load must be called with mu held.
func (r *Repository) load() ([]playbook.Row, error) {
	var rows []playbook.Row
	if _, err := r.file.getJSON(KeyEntries, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func indexOf(rows []playbook.Row, owner, id string) int {
	return slices.IndexFunc(rows, func(row playbook.Row) bool {
		return row.ID == id && row.OwnerID == owner
	})
}
