package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-api/internal/catalog"
	"github.com/vyrodovalexey/catalog-api/internal/model"
)

// maxReviewBodyBytes bounds the size of a review submission.
const maxReviewBodyBytes = 1 << 20

// Response messages.
const (
	msgReviewNotFound    = "Review not found"
	msgReviewDeleted     = "Review deleted successfully"
	msgMissingFields     = "Missing required fields"
	msgInvalidRating     = "Rating must be a number between 0 and 10"
	msgInvalidFilter     = "invalid filter parameter"
	msgInvalidBody       = "invalid request body"
	msgCatalogNotFound   = "catalog not found"
	msgInternalError     = "internal server error"
	msgInvalidPathNumber = "invalid path parameter"
)

// CatalogService is the catalog core consumed by the REST handler.
type CatalogService interface {
	Domain() catalog.Domain
	List(ctx context.Context, c catalog.Criteria) ([]model.Item, error)
	ByGenre(ctx context.Context, genre string) ([]model.Item, error)
	ByMinReviews(ctx context.Context, n int) ([]model.Item, error)
	ByMinRating(ctx context.Context, r float64) ([]model.Item, error)
	Get(ctx context.Context, id int) (model.Item, error)
	AddReview(ctx context.Context, id int, in model.ReviewInput) (model.Review, error)
	DeleteReview(ctx context.Context, id, index int) (model.Review, error)
}

// RESTHandler serves the REST API of one catalog domain.
type RESTHandler struct {
	service CatalogService
	domain  catalog.Domain
	logger  *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(service CatalogService, logger *zap.Logger) *RESTHandler {
	domain := service.Domain()
	return &RESTHandler{
		service: service,
		domain:  domain,
		logger:  logger.With(zap.String("domain", domain.Name)),
	}
}

// RegisterRoutes registers the domain routes with the router. The review
// submission route is wrapped with writeLimit when it is not nil.
func (h *RESTHandler) RegisterRoutes(router *mux.Router, writeLimit func(http.Handler) http.Handler) {
	base := "/api/" + h.domain.Name

	addReview := http.Handler(http.HandlerFunc(h.AddReview))
	if writeLimit != nil {
		addReview = writeLimit(addReview)
	}

	router.HandleFunc(base, h.ListItems).Methods(http.MethodGet)
	router.HandleFunc(base+"/genre/{genre}", h.ListByGenre).Methods(http.MethodGet)
	router.HandleFunc(base+"/reviews/{count:[0-9]+}", h.ListByReviewCount).Methods(http.MethodGet)
	router.HandleFunc(base+"/rating/{rating:[0-9]+(?:\\.[0-9]+)?}", h.ListByRating).Methods(http.MethodGet)
	router.HandleFunc(base+"/{id:[0-9]+}", h.GetItem).Methods(http.MethodGet)
	router.Handle(base+"/{id:[0-9]+}/reviews", addReview).Methods(http.MethodPost)
	router.HandleFunc(base+"/{id:[0-9]+}/reviews/{index:[0-9]+}", h.DeleteReview).Methods(http.MethodDelete)
}

// ListItems handles GET /api/{domain} with optional filter parameters.
func (h *RESTHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	criteria, err := catalog.ParseCriteria(r.URL.Query())
	if err != nil {
		h.handleError(w, err, "parse filters")
		return
	}

	items, err := h.service.List(r.Context(), criteria)
	if err != nil {
		h.handleError(w, err, "list items")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, items)
}

// ListByGenre handles GET /api/{domain}/genre/{genre}.
func (h *RESTHandler) ListByGenre(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ByGenre(r.Context(), mux.Vars(r)["genre"])
	if err != nil {
		h.handleError(w, err, "list by genre")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, items)
}

// ListByReviewCount handles GET /api/{domain}/reviews/{count}.
func (h *RESTHandler) ListByReviewCount(w http.ResponseWriter, r *http.Request) {
	count, ok := h.pathInt(w, r, "count")
	if !ok {
		return
	}

	items, err := h.service.ByMinReviews(r.Context(), count)
	if err != nil {
		h.handleError(w, err, "list by review count")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, items)
}

// ListByRating handles GET /api/{domain}/rating/{rating}.
func (h *RESTHandler) ListByRating(w http.ResponseWriter, r *http.Request) {
	rating, err := strconv.ParseFloat(mux.Vars(r)["rating"], 64)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, msgInvalidPathNumber)
		return
	}

	items, err := h.service.ByMinRating(r.Context(), rating)
	if err != nil {
		h.handleError(w, err, "list by rating")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, items)
}

// GetItem handles GET /api/{domain}/{id}.
func (h *RESTHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.handleError(w, err, "get item")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, item)
}

// AddReview handles POST /api/{domain}/{id}/reviews.
func (h *RESTHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}

	var input model.ReviewInput
	r.Body = http.MaxBytesReader(w, r.Body, maxReviewBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		// An unknown item is reported before a malformed body.
		if _, getErr := h.service.Get(ctx, id); getErr != nil {
			h.handleError(w, getErr, "add review")
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, msgInvalidBody)
		return
	}

	review, err := h.service.AddReview(ctx, id, input)
	if err != nil {
		h.handleError(w, err, "add review")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, review)
}

// DeleteReview handles DELETE /api/{domain}/{id}/reviews/{index}.
func (h *RESTHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathInt(w, r, "id")
	if !ok {
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		// Digits only, so this is an index too large for int.
		writeError(w, h.logger, http.StatusNotFound, msgReviewNotFound)
		return
	}

	review, err := h.service.DeleteReview(r.Context(), id, index)
	if err != nil {
		h.handleError(w, err, "delete review")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.ReviewDeletedResponse{
		Message: msgReviewDeleted,
		Review:  review,
	})
}

// pathInt parses an integer path variable. Routes only match digits, so a
// failure means the value overflows int; it is reported as an unknown item.
func (h *RESTHandler) pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		if name == "id" {
			writeError(w, h.logger, http.StatusNotFound, h.domain.NotFoundMessage)
		} else {
			writeError(w, h.logger, http.StatusBadRequest, msgInvalidPathNumber)
		}
		return 0, false
	}
	return v, true
}

// handleError maps catalog errors to HTTP responses.
func (h *RESTHandler) handleError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		writeError(w, h.logger, http.StatusNotFound, h.domain.NotFoundMessage)
	case errors.Is(err, catalog.ErrReviewNotFound):
		writeError(w, h.logger, http.StatusNotFound, msgReviewNotFound)
	case errors.Is(err, model.ErrMissingFields):
		writeError(w, h.logger, http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, model.ErrInvalidRating):
		writeError(w, h.logger, http.StatusBadRequest, msgInvalidRating)
	case errors.Is(err, catalog.ErrInvalidArgument):
		h.logger.Debug("invalid filter", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, msgInvalidFilter)
	case errors.Is(err, catalog.ErrDocumentNotFound):
		h.logger.Error("catalog document missing", zap.String("operation", operation), zap.Error(err))
		writeError(w, h.logger, http.StatusNotFound, msgCatalogNotFound)
	default:
		h.logger.Error("catalog operation failed", zap.String("operation", operation), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
	}
}
