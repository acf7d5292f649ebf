// Package store holds one owner's entry list and mediates every persistence call.
//
// A Store is the single source of truth for an owner's entries and selected
// industry. View code reads through it and mutates only through its operations,
// so lastUpdated and list order stay consistent. Remote calls are not serialized:
// concurrent writes to one id resolve last-write-wins.
package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
)

// Local preference keys.
const (
	KeySelectedIndustry = "pp_selected_industry"
	KeySeenGuide        = "pp_seen_guide"
)

// Repository is the persistence adapter contract. Implementations never panic
// across this boundary: failures come back as *errors.PlaybookError values,
// list calls return an empty slice alongside the error, and deleting an unknown
// id succeeds.
type Repository interface {
	ListByOwner(ctx context.Context, owner string) ([]playbook.Entry, error)
	ListPublished(ctx context.Context) ([]playbook.Entry, error)
	Get(ctx context.Context, owner, id string) (*playbook.Entry, error)
	Create(ctx context.Context, owner string, e playbook.Entry) (*playbook.Entry, error)
	Update(ctx context.Context, owner, id string, p playbook.Patch) (*playbook.Entry, error)
	Delete(ctx context.Context, owner, id string) error
}

// Preferences is device-local key/value storage. It is never synchronized remotely.
type Preferences interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is one owner's in-memory entry list backed by a Repository.
type Store struct {
	owner  string
	repo   Repository
	prefs  Preferences
	logger *zap.Logger
	now    func() time.Time

	mu               sync.RWMutex
	entries          []playbook.Entry
	loading          bool
	loaded           bool
	selectedIndustry string
}

// New creates a Store for owner. The selected industry is read from prefs immediately.
func New(owner string, repo Repository, prefs Preferences, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		owner:  owner,
		repo:   repo,
		prefs:  prefs,
		logger: logger.With(zap.String("owner", owner)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if prefs != nil {
		if v, ok := prefs.Get(KeySelectedIndustry); ok {
			s.selectedIndustry = v
		}
	}
	return s
}

// Owner returns the owner id this store serves.
func (s *Store) Owner() string {
	return s.owner
}

// LoadAll fetches the owner's entries, newest first, replacing the in-memory list.
// On failure the previous list is kept.
func (s *Store) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	entries, err := s.repo.ListByOwner(ctx, s.owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.logger.Warn("load entries failed", zap.Error(err))
		return err
	}
	s.entries = cloneAll(entries)
	s.loaded = true
	return nil
}

// EnsureLoaded calls LoadAll once; later calls are no-ops until Invalidate.
func (s *Store) EnsureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.LoadAll(ctx)
}

func (s *Store) markEmpty() {
	s.mu.Lock()
	s.entries = []playbook.Entry{}
	s.loaded = true
	s.mu.Unlock()
}

// Loading reports whether LoadAll is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Entries returns a copy of the in-memory list, newest first.
func (s *Store) Entries() []playbook.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.entries)
}

// Get returns an entry from the in-memory list.
func (s *Store) Get(id string) (playbook.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.entries[i].Clone(), true
	}
	return playbook.Entry{}, false
}

// Published fetches every owner's published entries. The result is not cached.
func (s *Store) Published(ctx context.Context) ([]playbook.Entry, error) {
	entries, err := s.repo.ListPublished(ctx)
	if err != nil {
		s.logger.Warn("load published entries failed", zap.Error(err))
		return nil, err
	}
	return entries, nil
}

// Create persists a fully formed entry and prepends it to the list.
// Missing id, timestamps, and status are filled in; lastUpdated is set to dateCreated.
func (s *Store) Create(ctx context.Context, e playbook.Entry) (*playbook.Entry, error) {
	e = e.Clone()
	if e.ID == "" {
		id, err := playbook.NewID()
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		e.ID = id
	}
	if e.DateCreated == 0 {
		e.DateCreated = playbook.NowMillis(s.now())
	}
	e.LastUpdated = e.DateCreated
	if e.Status == "" {
		e.Status = playbook.StatusDraft
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}

	stored, err := s.repo.Create(ctx, s.owner, e)
	if err != nil {
		s.logger.Warn("create entry failed", zap.String("id", e.ID), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.entries = append([]playbook.Entry{stored.Clone()}, s.entries...)
	s.mu.Unlock()

	out := stored.Clone()
	return &out, nil
}

// Update merges p into the entry with the given id and persists it.
// lastUpdated is always rewritten and never moves backwards for an entry in the list.
// On failure the in-memory list is unchanged.
func (s *Store) Update(ctx context.Context, id string, p playbook.Patch) (*playbook.Entry, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if p.Status != nil {
		if _, ok := playbook.ParseStatus(string(*p.Status)); !ok {
			return nil, errors.NewInvalidRequest("unknown status: " + string(*p.Status))
		}
	}

	now := playbook.NowMillis(s.now())
	if cur, ok := s.Get(id); ok {
		if now <= cur.LastUpdated {
			now = cur.LastUpdated + 1
		}
		if now < cur.DateCreated {
			now = cur.DateCreated
		}
	}
	p.LastUpdated = &now

	updated, err := s.repo.Update(ctx, s.owner, id, p)
	if err != nil {
		s.logger.Warn("update entry failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.entries[i] = updated.Clone()
	}
	s.mu.Unlock()

	out := updated.Clone()
	return &out, nil
}

// TogglePublish sets isPublished (and lastUpdated) only.
func (s *Store) TogglePublish(ctx context.Context, id string, published bool) (*playbook.Entry, error) {
	return s.Update(ctx, id, playbook.Patch{IsPublished: &published})
}

// Transition moves an entry through the lifecycle. Same-state moves return the
// current entry without writing.
func (s *Store) Transition(ctx context.Context, id string, to playbook.Status) (*playbook.Entry, error) {
	cur, ok := s.Get(id)
	if !ok {
		fetched, err := s.repo.Get(ctx, s.owner, id)
		if err != nil {
			return nil, err
		}
		cur = *fetched
	}

	next, err := playbook.Transition(cur.Status, to)
	if err != nil {
		return nil, err
	}
	if next == cur.Status {
		return &cur, nil
	}
	return s.Update(ctx, id, playbook.Patch{Status: &next})
}

// Approve marks an entry as trusted for reuse.
func (s *Store) Approve(ctx context.Context, id string) (*playbook.Entry, error) {
	return s.Transition(ctx, id, playbook.StatusApproved)
}

// Delete removes an entry permanently. Deleting an unknown id is a no-op.
// On failure the entry stays in the list.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.NewInvalidRequest("id is required")
	}
	if err := s.repo.Delete(ctx, s.owner, id); err != nil {
		s.logger.Warn("delete entry failed", zap.String("id", id), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.entries = slices.DeleteFunc(s.entries, func(e playbook.Entry) bool { return e.ID == id })
	s.mu.Unlock()
	return nil
}

// SelectedIndustry returns the locally persisted industry, or "" if none is chosen.
func (s *Store) SelectedIndustry() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedIndustry
}

// SetSelectedIndustry persists the choice locally. An empty value removes the key.
func (s *Store) SetSelectedIndustry(industry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefs != nil {
		var err error
		if industry == "" {
			err = s.prefs.Remove(KeySelectedIndustry)
		} else {
			err = s.prefs.Set(KeySelectedIndustry, industry)
		}
		if err != nil {
			return errors.NewInternal(err)
		}
	}
	s.selectedIndustry = industry
	return nil
}

// HasSeenGuide reports whether the first-run guide was dismissed on this device.
func (s *Store) HasSeenGuide() bool {
	if s.prefs == nil {
		return false
	}
	v, ok := s.prefs.Get(KeySeenGuide)
	return ok && v == "true"
}

// MarkGuideSeen records that the first-run guide was dismissed.
func (s *Store) MarkGuideSeen() error {
	if s.prefs == nil {
		return nil
	}
	if err := s.prefs.Set(KeySeenGuide, "true"); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.entries, func(e playbook.Entry) bool { return e.ID == id })
}

func cloneAll(entries []playbook.Entry) []playbook.Entry {
	out := make([]playbook.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}
