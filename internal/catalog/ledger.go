package catalog

import (
	"fmt"
	"time"

	"github.com/vyrodovalexey/catalog-api/internal/model"
)

// AddReview appends a review built from in to item itemID and recomputes the
// item rating. The catalog passed in is not modified; the updated copy is
// returned together with the stored review.
func AddReview(
	catalog model.Catalog,
	itemID int,
	in model.ReviewInput,
	now time.Time,
) (model.Catalog, model.Review, error) {
	idx, ok := FindByID(catalog, itemID)
	if !ok {
		return nil, model.Review{}, fmt.Errorf("add review to %d: %w", itemID, ErrItemNotFound)
	}

	review, err := model.NewReview(in, now)
	if err != nil {
		return nil, model.Review{}, fmt.Errorf("add review to %d: %w", itemID, err)
	}

	updated := catalog.Clone()
	item := &updated[idx]
	item.Reviews = append(item.Reviews, review)
	item.RecomputeRating()

	return updated, review, nil
}

// DeleteReview removes the review at index (zero-based, from the front) of
// item itemID and recomputes the item rating. Negative or too large indices
// are reported as ErrReviewNotFound; there is no reverse indexing.
func DeleteReview(
	catalog model.Catalog,
	itemID int,
	index int,
) (model.Catalog, model.Review, error) {
	idx, ok := FindByID(catalog, itemID)
	if !ok {
		return nil, model.Review{}, fmt.Errorf("delete review from %d: %w", itemID, ErrItemNotFound)
	}

	reviews := catalog[idx].Reviews
	if index < 0 || index >= len(reviews) {
		return nil, model.Review{}, fmt.Errorf(
			"delete review %d from %d (has %d): %w", index, itemID, len(reviews), ErrReviewNotFound,
		)
	}

	updated := catalog.Clone()
	item := &updated[idx]
	removed := item.Reviews[index]
	item.Reviews = append(item.Reviews[:index], item.Reviews[index+1:]...)
	item.RecomputeRating()

	return updated, removed, nil
}
