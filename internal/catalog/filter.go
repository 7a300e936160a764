package catalog

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/schema"

	"github.com/vyrodovalexey/catalog-api/internal/model"
)

// Criteria narrows a list of items. Nil fields impose no constraint;
// supplied fields are combined with logical AND.
type Criteria struct {
	Genre      *string  `schema:"genre"`
	MinReviews *int     `schema:"min_reviews"`
	MinRating  *float64 `schema:"min_rating"`
	MaxRating  *float64 `schema:"max_rating"`
}

var criteriaDecoder = newCriteriaDecoder()

func newCriteriaDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// numericKeys are the query parameters that must carry a number when present.
var numericKeys = []string{"min_reviews", "min_rating", "max_rating"}

// ParseCriteria decodes the recognized filter parameters of a query string.
// A numeric parameter that is present but empty is rejected.
func ParseCriteria(query url.Values) (Criteria, error) {
	for _, key := range numericKeys {
		values, ok := query[key]
		if !ok {
			continue
		}
		for _, v := range values {
			if strings.TrimSpace(v) == "" {
				return Criteria{}, fmt.Errorf("%w: %s is empty", ErrInvalidArgument, key)
			}
		}
	}

	var c Criteria
	if err := criteriaDecoder.Decode(&c, query); err != nil {
		return Criteria{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return c, nil
}

// Match reports whether item satisfies every supplied criterion. Rating
// bounds are tested in the positive, so a NaN bound matches nothing.
func (c Criteria) Match(item *model.Item) bool {
	if c.Genre != nil && !item.HasGenre(*c.Genre) {
		return false
	}
	if c.MinReviews != nil && len(item.Reviews) < *c.MinReviews {
		return false
	}
	if c.MinRating != nil && !(float64(item.Rating) >= *c.MinRating) {
		return false
	}
	if c.MaxRating != nil && !(float64(item.Rating) <= *c.MaxRating) {
		return false
	}
	return true
}

// ApplyFilters returns the items matching c in their original order.
// The input slice is left untouched.
func ApplyFilters(items []model.Item, c Criteria) []model.Item {
	out := make([]model.Item, 0, len(items))
	for idx := range items {
		if c.Match(&items[idx]) {
			out = append(out, items[idx])
		}
	}
	return out
}

// ByGenre keeps items tagged with genre.
func ByGenre(items []model.Item, genre string) []model.Item {
	return ApplyFilters(items, Criteria{Genre: &genre})
}

// ByMinReviews keeps items with at least n reviews.
func ByMinReviews(items []model.Item, n int) []model.Item {
	return ApplyFilters(items, Criteria{MinReviews: &n})
}

// ByMinRating keeps items rated at least r.
func ByMinRating(items []model.Item, r float64) []model.Item {
	return ApplyFilters(items, Criteria{MinRating: &r})
}
