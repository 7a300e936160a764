// Package model defines data structures used throughout the application.
package model

import (
	"math"
	"strconv"
	"strings"
)

// Score is a rating value in the 0..10 range.
// It always serializes with at least one fractional digit (8 -> 8.0) so that
// rewritten catalog documents keep the formatting of the hand-edited ones.
type Score float64

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &UnsupportedScoreError{Value: f}
	}

	out := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(out, ".eE") {
		out += ".0"
	}
	return []byte(out), nil
}

// UnsupportedScoreError is returned when a NaN or infinite score is serialized.
type UnsupportedScoreError struct {
	Value float64
}

func (e *UnsupportedScoreError) Error() string {
	return "unsupported score value: " + strconv.FormatFloat(e.Value, 'g', -1, 64)
}

// RoundScore rounds v to one decimal place, resolving exact ties to even.
// The decision is made on the exact binary value, so 7.25 becomes 7.2 while
// 7.35 (stored as 7.3499...) becomes 7.3.
func RoundScore(v float64) Score {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return Score(v)
	}
	return Score(r)
}

// Item is a single catalog entry: a book, a game or a movie.
type Item struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Creator     string   `json:"creator,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	Genres      []string `json:"genres"`
	Rating      Score    `json:"rating"`
	Reviews     []Review `json:"reviews"`
}

// HasGenre reports whether the item is tagged with genre, ignoring case.
// Tags are compared whole; "art" does not match "Arthouse".
func (i *Item) HasGenre(genre string) bool {
	want := strings.ToLower(genre)
	for _, g := range i.Genres {
		if strings.ToLower(g) == want {
			return true
		}
	}
	return false
}

// RecomputeRating restores the rating invariant: the rounded mean of all
// review ratings, or 0.0 when the item has no reviews.
func (i *Item) RecomputeRating() {
	i.Rating = MeanScore(i.Reviews)
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	if i.Genres != nil {
		out.Genres = append([]string(nil), i.Genres...)
	}
	if i.Reviews != nil {
		out.Reviews = append([]Review(nil), i.Reviews...)
	}
	return out
}

// MeanScore returns the mean rating of reviews rounded with RoundScore.
func MeanScore(reviews []Review) Score {
	if len(reviews) == 0 {
		return 0
	}

	var total float64
	for _, r := range reviews {
		total += float64(r.Rating)
	}

	return RoundScore(total / float64(len(reviews)))
}

// Catalog is the ordered list of items of one domain.
type Catalog []Item

// Clone returns a deep copy of the catalog.
func (c Catalog) Clone() Catalog {
	if c == nil {
		return nil
	}
	out := make(Catalog, len(c))
	for idx := range c {
		out[idx] = c[idx].Clone()
	}
	return out
}
