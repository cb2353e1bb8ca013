// Package resource is the generic data-access layer shared by the domain
// services: cache-aside reads, paginated listings, structured cache keys and
// explicit invalidation. It never invalidates on its own; every write path in
// a domain service names the keys it affects.
package resource

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/order-desk/internal/cache"
	"github.com/TemirB/order-desk/internal/domain"
	"github.com/TemirB/order-desk/internal/observability"
)

const (
	DefaultPerPage = 10
	DefaultTTL     = 1440 * time.Minute

	// TypeAll is the bucket of the unfiltered listing.
	TypeAll = "all"
)

// DefaultSort is applied to listings that do not order themselves.
var DefaultSort = domain.Sort{Field: "created_at", Direction: domain.Desc}

// Store is the entity store a Service reads and writes. T is the entity, C
// its creation payload and P its update payload.
type Store[T, C, P any] interface {
	Insert(ctx context.Context, in C) (T, error)
	FindByID(ctx context.Context, id int64) (T, error)
	FindByIDWith(ctx context.Context, id int64, relations []string) (T, error)
	Query(ctx context.Context, q domain.Query) (domain.Page[T], error)
	Update(ctx context.Context, id int64, patch P) (T, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type Options struct {
	// Prefix scopes every key of the service, e.g. "order".
	Prefix string
	// Model tags single-entity keys: {prefix}.{model}.{id}. Defaults to Prefix.
	Model string
	// Relations are eager-loaded by GetByID.
	Relations []string
	// TTL of cached values. Defaults to DefaultTTL.
	TTL time.Duration
}

type Service[T, C, P any] struct {
	*Cacher

	store     Store[T, C, P]
	model     string
	relations []string
	logger    *zap.Logger
}

func New[T, C, P any](store Store[T, C, P], c Cache, opts Options, logger *zap.Logger, metrics observability.Metrics) *Service[T, C, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := opts.Model
	if model == "" {
		model = opts.Prefix
	}
	return &Service[T, C, P]{
		Cacher:    NewCacher(c, opts.Prefix, opts.TTL, logger, metrics),
		store:     store,
		model:     model,
		relations: normalizeRelations(opts.Relations),
		logger:    logger,
	}
}

func (s *Service[T, C, P]) Model() string { return s.model }

// Create inserts a record. Callers decide what to invalidate.
func (s *Service[T, C, P]) Create(ctx context.Context, in C) (T, error) {
	created, err := s.store.Insert(ctx, in)
	if err != nil {
		s.logger.Error("Error while inserting record",
			zap.String("prefix", s.prefix),
			zap.Error(err),
		)
		return created, err
	}
	return created, nil
}

// GetAll returns one page of the unfiltered listing, newest first, cached in
// the {prefix}.all bucket.
func (s *Service[T, C, P]) GetAll(ctx context.Context, page, perPage int) (domain.Page[T], error) {
	key := s.ListKey(s.Key(TypeAll), page, perPage)
	return Remember(ctx, s.Cacher, key, func(ctx context.Context) (domain.Page[T], error) {
		return s.Paginate(ctx, domain.Query{}, page, perPage)
	})
}

// GetByID returns one entity through the cache, with the service's default
// relations loaded.
func (s *Service[T, C, P]) GetByID(ctx context.Context, id int64) (T, error) {
	return s.GetByIDWith(ctx, id, s.relations...)
}

// GetByIDWith returns one entity with the given relations loaded. Each
// relation set is cached under its own key, so a relation-stripped copy is
// never served where a richer one was asked for.
func (s *Service[T, C, P]) GetByIDWith(ctx context.Context, id int64, relations ...string) (T, error) {
	relations = normalizeRelations(relations)
	return Remember(ctx, s.Cacher, s.EntityKey(id, relations...), func(ctx context.Context) (T, error) {
		var (
			entity T
			err    error
		)
		if len(relations) == 0 {
			entity, err = s.store.FindByID(ctx, id)
		} else {
			entity, err = s.store.FindByIDWith(ctx, id, relations)
		}
		if err != nil {
			s.logFindError(id, err)
		}
		return entity, err
	})
}

// Update loads the current entity through the cache and persists patch.
// Callers invalidate every key the change can affect.
func (s *Service[T, C, P]) Update(ctx context.Context, id int64, patch P) (T, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		var zero T
		return zero, err
	}
	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		s.logger.Error("Error while updating record",
			zap.String("prefix", s.prefix),
			zap.Int64("id", id),
			zap.Error(err),
		)
		return updated, err
	}
	return updated, nil
}

// Delete removes the record and reports whether a row was removed.
// Callers invalidate every key the removal can affect.
func (s *Service[T, C, P]) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		s.logger.Error("Error while deleting record",
			zap.String("prefix", s.prefix),
			zap.Int64("id", id),
			zap.Error(err),
		)
		return false, err
	}
	return deleted, nil
}

// Paginate runs q with the default ordering, unless q orders itself, and the
// requested page.
func (s *Service[T, C, P]) Paginate(ctx context.Context, q domain.Query, page, perPage int) (domain.Page[T], error) {
	if q.Sort.IsZero() {
		q.Sort = DefaultSort
	}
	q.Page = page
	q.PerPage = perPage
	return s.store.Query(ctx, q)
}

// EntityKey is {prefix}.{model}.{id}, or {prefix}.{model}.{relations}.{id}
// when relations are loaded.
func (s *Service[T, C, P]) EntityKey(id int64, relations ...string) cache.Key {
	return s.Key(s.model).WithSuffix(RelationSuffix(relations)).WithID(id)
}

// ForgetEntity drops the cached copies of one entity: the plain one and
// every subset of the default relations, since GetByIDWith may have cached
// any of them. Extra relation sets outside the defaults can be given too.
func (s *Service[T, C, P]) ForgetEntity(id int64, extra ...[]string) {
	suffixes := relationSubsets(s.relations)
	for _, rel := range extra {
		if suffix := RelationSuffix(rel); suffix != "" && !slices.Contains(suffixes, suffix) {
			suffixes = append(suffixes, suffix)
		}
	}
	s.ClearModelCacheWithSuffixes(id, []string{s.model}, suffixes)
}

// relationSubsets renders every non-empty subset of relations as a key suffix.
func relationSubsets(relations []string) []string {
	n := len(relations)
	if n == 0 {
		return nil
	}
	out := make([]string, 0, 1<<n-1)
	for mask := 1; mask < 1<<n; mask++ {
		subset := make([]string, 0, n)
		for i, r := range relations {
			if mask&(1<<i) != 0 {
				subset = append(subset, r)
			}
		}
		out = append(out, RelationSuffix(subset))
	}
	return out
}

func (s *Service[T, C, P]) logFindError(id int64, err error) {
	if domain.IsNotFound(err) {
		s.logger.Debug("Record not found",
			zap.String("prefix", s.prefix),
			zap.Int64("id", id),
		)
		return
	}
	s.logger.Error("Can't load record",
		zap.String("prefix", s.prefix),
		zap.Int64("id", id),
		zap.Error(err),
	)
}

// RelationSuffix renders a relation set as a key suffix: sorted, deduplicated
// and joined with "+".
func RelationSuffix(relations []string) string {
	return strings.Join(normalizeRelations(relations), "+")
}

func normalizeRelations(relations []string) []string {
	if len(relations) == 0 {
		return nil
	}
	out := slices.Clone(relations)
	slices.Sort(out)
	return slices.Compact(out)
}
