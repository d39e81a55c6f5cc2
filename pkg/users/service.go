package users

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/portal/pkg/identity"
	"github.com/platinummonkey/portal/pkg/observability"
)

// ErrEmptyUpdate is returned when an update carries no fields
var ErrEmptyUpdate = errors.New("update has no fields")

// Directory is the remote user directory. identity.Client implements it; build
// that client over identity.AuthTransport so expired access tokens are
// refreshed transparently.
type Directory interface {
	ListUsers(ctx context.Context) ([]identity.Identity, error)
	GetUser(ctx context.Context, id int64) (*identity.Identity, error)
	UpdateUser(ctx context.Context, id int64, update identity.UserUpdate) (*identity.Identity, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Config holds user cache settings
type Config struct {
	CacheSize int
	CacheTTL  time.Duration
}

// DefaultConfig returns the default cache settings
func DefaultConfig() Config {
	return Config{
		CacheSize: 256,
		CacheTTL:  30 * time.Second,
	}
}

const listKey int64 = -1

// Service reads and administers users through a Directory, caching reads
type Service struct {
	directory Directory
	cache     *lru.LRU[int64, []identity.Identity]
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the service logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records cache hits, misses and invalidations
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// NewService creates a user service. A CacheSize of zero or less disables caching.
func NewService(directory Directory, cfg Config, opts ...Option) *Service {
	s := &Service{
		directory: directory,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.CacheSize > 0 {
		s.cache = lru.NewLRU[int64, []identity.Identity](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

// List returns every user ordered by ID
func (s *Service) List(ctx context.Context) ([]identity.Identity, error) {
	if cached, ok := s.lookup(listKey); ok {
		return cached, nil
	}

	list, err := s.directory.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	s.store(listKey, list)
	return cloneAll(list), nil
}

// Get returns a single user
func (s *Service) Get(ctx context.Context, id int64) (*identity.Identity, error) {
	if cached, ok := s.lookup(id); ok {
		return &cached[0], nil
	}

	user, err := s.directory.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	s.store(id, []identity.Identity{*user})
	return user.Clone(), nil
}

// Update applies a partial update and invalidates the cached copies of the user
func (s *Service) Update(ctx context.Context, id int64, update identity.UserUpdate) (*identity.Identity, error) {
	if update.Empty() {
		return nil, ErrEmptyUpdate
	}

	user, err := s.directory.UpdateUser(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	s.invalidate(id)

	s.logger.WithField("user_id", id).Info("user updated")
	return user, nil
}

// Delete removes a user and invalidates the cached copies of it
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.directory.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	s.invalidate(id)

	s.logger.WithField("user_id", id).Info("user deleted")
	return nil
}

func (s *Service) lookup(key int64) ([]identity.Identity, bool) {
	if s.cache == nil {
		return nil, false
	}
	cached, ok := s.cache.Get(key)
	if !ok {
		s.metrics.IncUserCache("miss")
		return nil, false
	}
	s.metrics.IncUserCache("hit")
	return cloneAll(cached), true
}

func (s *Service) store(key int64, list []identity.Identity) {
	if s.cache == nil {
		return
	}
	s.cache.Add(key, cloneAll(list))
}

func (s *Service) invalidate(id int64) {
	if s.cache == nil {
		return
	}
	s.cache.Remove(id)
	s.cache.Remove(listKey)
	s.metrics.IncUserCache("invalidate")
}

func cloneAll(list []identity.Identity) []identity.Identity {
	out := make([]identity.Identity, len(list))
	for i := range list {
		out[i] = *list[i].Clone()
	}
	return out
}
