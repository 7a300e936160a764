package model

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// ReviewDateLayout is the layout of Review.Date (day.month.year).
const ReviewDateLayout = "02.01.2006"

// Rating bounds, inclusive.
const (
	MinRating = 0
	MaxRating = 10
)

// Validation errors for reviews.
var (
	ErrValidation    = errors.New("invalid review")
	ErrMissingFields = fmt.Errorf("%w: missing required fields", ErrValidation)
	ErrInvalidRating = fmt.Errorf("%w: rating must be a number between %d and %d",
		ErrValidation, MinRating, MaxRating)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Review is a user review attached to an item.
type Review struct {
	Author string `json:"author"`
	Text   string `json:"text"`
	Rating Score  `json:"rating" validate:"gte=0,lte=10"`
	Date   string `json:"date"`
}

// ReviewInput is the client payload for a new review.
// Rating is kept raw because numeric strings ("8") are accepted as well.
type ReviewInput struct {
	Author *string         `json:"author" validate:"required"`
	Text   *string         `json:"text" validate:"required"`
	Rating json.RawMessage `json:"rating" validate:"required"`
}

// NewReview validates the input and builds a review dated at now.
func NewReview(in ReviewInput, now time.Time) (Review, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return Review{}, fmt.Errorf("%w: %s", ErrMissingFields, joinFields(verrs))
		}
		return Review{}, fmt.Errorf("validating review: %w", err)
	}

	rating, err := parseRating(in.Rating)
	if err != nil {
		return Review{}, err
	}

	review := Review{
		Author: *in.Author,
		Text:   *in.Text,
		Rating: Score(rating),
		Date:   now.Format(ReviewDateLayout),
	}

	if err := validate.Struct(review); err != nil {
		return Review{}, ErrInvalidRating
	}

	return review, nil
}

// parseRating accepts a JSON number or a string holding a decimal number.
// Booleans are rejected rather than read as 0 or 1, as are null, objects
// and arrays.
func parseRating(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrInvalidRating
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrInvalidRating
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, ErrInvalidRating
		}
		return v, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return 0, ErrInvalidRating
		}
		return v, nil
	default:
		return 0, ErrInvalidRating
	}
}

func joinFields(verrs validator.ValidationErrors) string {
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return strings.Join(fields, ", ")
}
