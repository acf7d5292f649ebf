package store

import (
	"container/list"
	"context"
	"sync"

	"go.uber.org/zap"
)

// DefaultRegistryLimit is the number of owner stores a Registry keeps cached.
const DefaultRegistryLimit = 1024

// PreferenceSpace hands out device-local preferences scoped to one owner.
type PreferenceSpace interface {
	Namespace(owner string) Preferences
}

// Registry keeps lazily loaded Stores for the web and MCP layers. It holds at
// most limit stores and drops the least recently used one beyond that. A
// dropped store is only a cache: its next use reloads from the repository.
type Registry struct {
	repo   Repository
	prefs  PreferenceSpace
	logger *zap.Logger
	opts   []Option
	limit  int

	mu     sync.Mutex
	order  *list.List // front is most recently used; values are *Store
	stores map[string]*list.Element
}

// NewRegistry creates a Registry. prefs may be nil.
func NewRegistry(repo Repository, prefs PreferenceSpace, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		repo:   repo,
		prefs:  prefs,
		logger: logger,
		opts:   opts,
		limit:  DefaultRegistryLimit,
		order:  list.New(),
		stores: make(map[string]*list.Element),
	}
}

// SetLimit changes how many stores stay cached. Values below 1 are ignored.
func (r *Registry) SetLimit(n int) {
	if n < 1 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = n
	r.evictLocked()
}

// Len returns the number of cached stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}

// Repository returns the shared persistence adapter.
func (r *Registry) Repository() Repository {
	return r.repo
}

// For returns the owner's store, loading its entries on first use.
// A failed first load is returned and retried on the next call.
func (r *Registry) For(ctx context.Context, owner string) (*Store, error) {
	r.mu.Lock()
	var s *Store
	if el, ok := r.stores[owner]; ok {
		r.order.MoveToFront(el)
		s = el.Value.(*Store)
	} else {
		s = r.newStore(owner)
		r.stores[owner] = r.order.PushFront(s)
		r.evictLocked()
	}
	r.mu.Unlock()

	if err := s.EnsureLoaded(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// Fresh returns an empty, loaded store for an owner known to have no entries.
// It is not cached and costs no repository call. Writes through it persist
// normally and are picked up when For first loads the owner.
func (r *Registry) Fresh(owner string) *Store {
	s := r.newStore(owner)
	s.markEmpty()
	return s
}

// Reload forces the owner's list to be fetched again.
func (r *Registry) Reload(ctx context.Context, owner string) error {
	s, err := r.For(ctx, owner)
	if err != nil {
		return err
	}
	return s.LoadAll(ctx)
}

func (r *Registry) newStore(owner string) *Store {
	var prefs Preferences
	if r.prefs != nil {
		prefs = r.prefs.Namespace(owner)
	}
	return New(owner, r.repo, prefs, r.logger, r.opts...)
}

func (r *Registry) evictLocked() {
	for r.order.Len() > r.limit {
		el := r.order.Back()
		s := r.order.Remove(el).(*Store)
		delete(r.stores, s.Owner())
	}
}
