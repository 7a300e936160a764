package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-api/internal/model"
)

// EventPublisher receives review events after they have been persisted.
type EventPublisher interface {
	Publish(event model.ReviewEvent)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used to date reviews.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEventPublisher sets the publisher notified after every mutation.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// Service serves one domain. Every operation reloads the document; mutations
// rewrite it in full and are serialized so concurrent reviews are never lost.
type Service struct {
	domain Domain
	store  Store
	logger *zap.Logger
	now    func() time.Time
	events EventPublisher

	// mu guards the load-modify-save sequence of mutations.
	mu sync.Mutex
}

// NewService creates a Service for domain backed by store.
func NewService(domain Domain, store Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		domain: domain,
		store:  store,
		logger: logger.With(zap.String("domain", domain.Name)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Domain returns the domain served.
func (s *Service) Domain() Domain {
	return s.domain
}

// Ready reports whether the domain document can be loaded.
func (s *Service) Ready(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

// List returns the items matching c.
func (s *Service) List(ctx context.Context, c Criteria) ([]model.Item, error) {
	catalog, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return ApplyFilters(catalog, c), nil
}

// ByGenre returns the items tagged with genre.
func (s *Service) ByGenre(ctx context.Context, genre string) ([]model.Item, error) {
	catalog, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return ByGenre(catalog, genre), nil
}

// ByMinReviews returns the items with at least n reviews.
func (s *Service) ByMinReviews(ctx context.Context, n int) ([]model.Item, error) {
	catalog, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return ByMinReviews(catalog, n), nil
}

// ByMinRating returns the items rated at least r.
func (s *Service) ByMinRating(ctx context.Context, r float64) ([]model.Item, error) {
	catalog, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return ByMinRating(catalog, r), nil
}

// Get returns the item with the given id.
func (s *Service) Get(ctx context.Context, id int) (model.Item, error) {
	catalog, err := s.load(ctx)
	if err != nil {
		return model.Item{}, err
	}

	idx, ok := FindByID(catalog, id)
	if !ok {
		return model.Item{}, fmt.Errorf("get %d: %w", id, ErrItemNotFound)
	}
	return catalog[idx], nil
}

// AddReview appends a review to item id, persists the catalog and returns
// the stored review.
func (s *Service) AddReview(ctx context.Context, id int, in model.ReviewInput) (model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.load(ctx)
	if err != nil {
		return model.Review{}, err
	}

	updated, review, err := AddReview(catalog, id, in, s.now())
	if err != nil {
		return model.Review{}, err
	}

	if err := s.save(ctx, updated); err != nil {
		return model.Review{}, err
	}

	idx, _ := FindByID(updated, id)
	item := updated[idx]

	reviewsAddedTotal.WithLabelValues(s.domain.Name).Inc()
	s.logger.Info("review added",
		zap.Int("item_id", id),
		zap.Int("reviews", len(item.Reviews)),
		zap.Float64("rating", float64(item.Rating)),
	)
	s.publish(model.EventReviewAdded, id, len(item.Reviews)-1, review, item.Rating)

	return review, nil
}

// DeleteReview removes the review at index from item id, persists the
// catalog and returns the removed review.
func (s *Service) DeleteReview(ctx context.Context, id, index int) (model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	catalog, err := s.load(ctx)
	if err != nil {
		return model.Review{}, err
	}

	updated, removed, err := DeleteReview(catalog, id, index)
	if err != nil {
		return model.Review{}, err
	}

	if err := s.save(ctx, updated); err != nil {
		return model.Review{}, err
	}

	idx, _ := FindByID(updated, id)
	item := updated[idx]

	reviewsDeletedTotal.WithLabelValues(s.domain.Name).Inc()
	s.logger.Info("review deleted",
		zap.Int("item_id", id),
		zap.Int("index", index),
		zap.Int("reviews", len(item.Reviews)),
		zap.Float64("rating", float64(item.Rating)),
	)
	s.publish(model.EventReviewDeleted, id, index, removed, item.Rating)

	return removed, nil
}

func (s *Service) load(ctx context.Context) (model.Catalog, error) {
	start := time.Now()
	catalog, err := s.store.Load(ctx)
	storeOperationDuration.WithLabelValues(s.domain.Name, "load").Observe(time.Since(start).Seconds())
	if err != nil {
		storeErrorsTotal.WithLabelValues(s.domain.Name, "load").Inc()
		return nil, fmt.Errorf("load %s catalog: %w", s.domain.Name, err)
	}
	return catalog, nil
}

func (s *Service) save(ctx context.Context, catalog model.Catalog) error {
	start := time.Now()
	err := s.store.Save(ctx, catalog)
	storeOperationDuration.WithLabelValues(s.domain.Name, "save").Observe(time.Since(start).Seconds())
	if err != nil {
		storeErrorsTotal.WithLabelValues(s.domain.Name, "save").Inc()
		return fmt.Errorf("save %s catalog: %w", s.domain.Name, err)
	}
	return nil
}

func (s *Service) publish(eventType string, itemID, index int, review model.Review, rating model.Score) {
	if s.events == nil {
		return
	}

	s.events.Publish(model.ReviewEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Domain:    s.domain.Name,
		ItemID:    itemID,
		Index:     index,
		Review:    review,
		Rating:    rating,
		Timestamp: s.now().UTC(),
	})
}
