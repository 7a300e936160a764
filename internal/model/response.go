package model

import "time"

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewErrorResponse creates an error response body.
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message}
}

// ReviewDeletedResponse is returned after a review has been removed.
type ReviewDeletedResponse struct {
	Message string `json:"message"`
	Review  Review `json:"review"`
}

// Review event types.
const (
	EventReviewAdded   = "review_added"
	EventReviewDeleted = "review_deleted"
)

// ReviewEvent describes a completed review mutation. It is pushed to
// subscribers of the domain's event stream.
type ReviewEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Domain    string    `json:"domain"`
	ItemID    int       `json:"item_id"`
	Index     int       `json:"index"`
	Review    Review    `json:"review"`
	Rating    Score     `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}
