package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/inkwelldev/inkwell-api/internal/api/shared"
	"github.com/inkwelldev/inkwell-api/internal/domain"
	"github.com/inkwelldev/inkwell-api/internal/service"
)

// Default and maximum page sizes for item listing
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CreateItemRequest represents the request body for capturing a new item
type CreateItemRequest struct {
	Text string `json:"text" validate:"required,min=1"`
}

// ItemResponse represents the response data for an item
type ItemResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Summary      string    `json:"summary"`
	Tags         []string  `json:"tags"`
	OriginalText string    `json:"original_text"`
	Confidence   string    `json:"confidence,omitempty"`
	Source       string    `json:"source"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ItemHandler handles item-related HTTP requests
type ItemHandler struct {
	itemService service.ItemService
	validator   *validator.Validate
}

// NewItemHandler creates a new ItemHandler
func NewItemHandler(itemService service.ItemService) *ItemHandler {
	return &ItemHandler{
		itemService: itemService,
		validator:   validator.New(),
	}
}

// CreateItem handles POST /api/items requests. It stores the raw text and
// enqueues the enrichment job; the response carries the pending item, since
// enrichment happens asynchronously.
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	item, err := h.itemService.CreateItemAndEnqueueTask(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyItemText) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Item text cannot be empty")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to create item", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, itemToResponse(item))
}

// GetItem handles GET /api/items/{id} requests
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid item ID")
		return
	}

	item, err := h.itemService.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Item not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to retrieve item", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, itemToResponse(item))
}

// ListItems handles GET /api/items requests. Supports an optional search
// query `q` and `limit`/`offset` pagination.
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		if parsed > maxListLimit {
			parsed = maxListLimit
		}
		limit = parsed
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid offset parameter")
			return
		}
		offset = parsed
	}

	items, err := h.itemService.ListItems(r.Context(), query, limit, offset)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to list items", err)
		return
	}

	responses := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, itemToResponse(item))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// DeleteItem handles DELETE /api/items/{id} requests
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid item ID")
		return
	}

	if err := h.itemService.DeleteItem(r.Context(), itemID); err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Item not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to delete item", err)
		return
	}

	slog.Debug("item deleted via API", "item_id", itemID)
	w.WriteHeader(http.StatusNoContent)
}

// itemToResponse converts a domain.Item to an ItemResponse
func itemToResponse(item *domain.Item) ItemResponse {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}

	return ItemResponse{
		ID:           item.ID.String(),
		Title:        item.Title,
		Description:  item.Description,
		Summary:      item.Summary,
		Tags:         tags,
		OriginalText: item.OriginalText,
		Confidence:   item.Confidence,
		Source:       string(item.Source),
		Status:       string(item.Status),
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}
