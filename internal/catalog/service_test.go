package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-api/internal/model"
)

// memoryStore is an in-memory Store used to drive the Service in tests.
type memoryStore struct {
	mu       sync.Mutex
	catalog  model.Catalog
	loadErr  error
	saveErr  error
	saves    int
	lastSave model.Catalog
}

func (m *memoryStore) Load(_ context.Context) (model.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.catalog.Clone(), nil
}

func (m *memoryStore) Save(_ context.Context, catalog model.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.catalog = catalog.Clone()
	m.lastSave = catalog.Clone()
	return nil
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ReviewEvent
}

func (p *recordingPublisher) Publish(event model.ReviewEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func newTestService(store Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(Books, store, zap.NewNop(), opts...)
}

func TestService_Get(t *testing.T) {
	store := &memoryStore{catalog: model.Catalog{{ID: 1, Title: "Dune"}}}
	svc := newTestService(store)

	item, err := svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if item.Title != "Dune" {
		t.Errorf("Title = %q, want Dune", item.Title)
	}

	_, err = svc.Get(context.Background(), 99999)
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Get(99999) error = %v, want ErrItemNotFound", err)
	}
}

func TestService_ListVariants(t *testing.T) {
	store := &memoryStore{catalog: sampleItems()}
	svc := newTestService(store)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() ([]model.Item, error)
		want int
	}{
		{"list all", func() ([]model.Item, error) { return svc.List(ctx, Criteria{}) }, 4},
		{"list filtered", func() ([]model.Item, error) {
			return svc.List(ctx, Criteria{Genre: ptr("sci-fi"), MinRating: ptr(7.0)})
		}, 1},
		{"by genre", func() ([]model.Item, error) { return svc.ByGenre(ctx, "FANTASY") }, 1},
		{"by min reviews", func() ([]model.Item, error) { return svc.ByMinReviews(ctx, 1) }, 3},
		{"by min rating", func() ([]model.Item, error) { return svc.ByMinRating(ctx, 6) }, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := tt.call()
			if err != nil {
				t.Fatalf("unexpected error = %v", err)
			}
			if len(items) != tt.want {
				t.Errorf("got %d items, want %d", len(items), tt.want)
			}
		})
	}

	if store.saves != 0 {
		t.Errorf("read operations saved the catalog %d times", store.saves)
	}
}

func TestService_LoadError(t *testing.T) {
	store := &memoryStore{loadErr: fmt.Errorf("read: %w", ErrParse)}
	svc := newTestService(store)

	if _, err := svc.List(context.Background(), Criteria{}); !errors.Is(err, ErrParse) {
		t.Errorf("List() error = %v, want ErrParse", err)
	}
	if err := svc.Ready(context.Background()); !errors.Is(err, ErrParse) {
		t.Errorf("Ready() error = %v, want ErrParse", err)
	}
}

func TestService_AddAndDeleteReview(t *testing.T) {
	// Arrange
	store := &memoryStore{catalog: model.Catalog{{ID: 1, Reviews: []model.Review{}}}}
	publisher := &recordingPublisher{}
	svc := newTestService(store, WithEventPublisher(publisher))
	ctx := context.Background()
	addedBefore := testutil.ToFloat64(reviewsAddedTotal.WithLabelValues(Books.Name))
	deletedBefore := testutil.ToFloat64(reviewsDeletedTotal.WithLabelValues(Books.Name))

	// Act
	review, err := svc.AddReview(ctx, 1, reviewInput("A", "ok", "8"))

	// Assert
	if err != nil {
		t.Fatalf("AddReview() error = %v", err)
	}
	if review.Date != fixedNow.Format(model.ReviewDateLayout) {
		t.Errorf("Date = %q", review.Date)
	}
	if store.lastSave[0].Rating != 8 {
		t.Errorf("saved rating = %v, want 8.0", store.lastSave[0].Rating)
	}

	// Act
	_, err = svc.AddReview(ctx, 1, reviewInput("B", "meh", "4"))
	if err != nil {
		t.Fatalf("AddReview() error = %v", err)
	}
	removed, err := svc.DeleteReview(ctx, 1, 0)

	// Assert
	if err != nil {
		t.Fatalf("DeleteReview() error = %v", err)
	}
	if removed.Author != "A" {
		t.Errorf("removed author = %q, want A", removed.Author)
	}
	if store.lastSave[0].Rating != 4 {
		t.Errorf("saved rating = %v, want 4.0", store.lastSave[0].Rating)
	}
	if store.saves != 3 {
		t.Errorf("saves = %d, want 3", store.saves)
	}

	if got := testutil.ToFloat64(reviewsAddedTotal.WithLabelValues(Books.Name)) - addedBefore; got != 2 {
		t.Errorf("reviews added counter delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(reviewsDeletedTotal.WithLabelValues(Books.Name)) - deletedBefore; got != 1 {
		t.Errorf("reviews deleted counter delta = %v, want 1", got)
	}

	if len(publisher.events) != 3 {
		t.Fatalf("published %d events, want 3", len(publisher.events))
	}
	last := publisher.events[2]
	if last.Type != model.EventReviewDeleted || last.Index != 0 || last.Rating != 4 || last.Domain != "books" {
		t.Errorf("last event = %+v", last)
	}
	if publisher.events[1].Type != model.EventReviewAdded || publisher.events[1].Index != 1 {
		t.Errorf("second event = %+v", publisher.events[1])
	}
	if publisher.events[0].ID == "" || publisher.events[0].ID == publisher.events[1].ID {
		t.Error("event ids should be unique and non-empty")
	}
}

func TestService_MutationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("validation error does not save", func(t *testing.T) {
		store := &memoryStore{catalog: model.Catalog{{ID: 1}}}
		svc := newTestService(store)

		_, err := svc.AddReview(ctx, 1, model.ReviewInput{})
		if !errors.Is(err, model.ErrMissingFields) {
			t.Errorf("AddReview() error = %v, want ErrMissingFields", err)
		}
		if store.saves != 0 {
			t.Error("catalog saved after a validation error")
		}
	})

	t.Run("unknown review index", func(t *testing.T) {
		store := &memoryStore{catalog: model.Catalog{{ID: 1, Reviews: []model.Review{{Rating: 3}}}}}
		svc := newTestService(store)

		_, err := svc.DeleteReview(ctx, 1, 5)
		if !errors.Is(err, ErrReviewNotFound) {
			t.Errorf("DeleteReview() error = %v, want ErrReviewNotFound", err)
		}
	})

	t.Run("save failure is reported and nothing is published", func(t *testing.T) {
		store := &memoryStore{
			catalog: model.Catalog{{ID: 1}},
			saveErr: fmt.Errorf("disk full: %w", ErrIO),
		}
		publisher := &recordingPublisher{}
		svc := newTestService(store, WithEventPublisher(publisher))

		_, err := svc.AddReview(ctx, 1, reviewInput("A", "ok", "5"))
		if !errors.Is(err, ErrIO) {
			t.Errorf("AddReview() error = %v, want ErrIO", err)
		}
		if len(publisher.events) != 0 {
			t.Error("event published after a failed save")
		}
	})
}

func TestService_ConcurrentReviewsAreNotLost(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "books.json")
	if err := os.WriteFile(path, []byte(`[{"id": 1, "genres": [], "rating": 0.0, "reviews": []}]`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	svc := newTestService(NewFileStore(path))
	const writers = 20

	// Act
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.AddReview(context.Background(), 1, reviewInput(fmt.Sprintf("user-%d", n), "text", "5"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	// Assert
	for err := range errs {
		if err != nil {
			t.Fatalf("AddReview() error = %v", err)
		}
	}
	item, err := svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(item.Reviews) != writers {
		t.Errorf("reviews = %d, want %d", len(item.Reviews), writers)
	}
	if item.Rating != 5 {
		t.Errorf("rating = %v, want 5.0", item.Rating)
	}
}
