package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/pantrytracker/internal/apperr"
	"github.com/dukerupert/pantrytracker/internal/service"
)

type PantryHandler struct {
	pantry *service.PantryService
	logger *slog.Logger
}

func NewPantryHandler(ps *service.PantryService, logger *slog.Logger) *PantryHandler {
	return &PantryHandler{pantry: ps, logger: logger}
}

func (h *PantryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.pantry.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *PantryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items, err := h.pantry.ListItems(r.Context(), page, pageSize, r.URL.Query().Get("searchQuery"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ListByCategory accepts repeated categoryIds parameters as well as a single
// comma-separated value.
func (h *PantryHandler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	var ids []int64
	for _, raw := range r.URL.Query()["categoryIds"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				writeError(w, r, h.logger, apperr.Validation("invalid categoryIds"))
				return
			}
			ids = append(ids, id)
		}
	}

	page, pageSize, err := pageParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	items, err := h.pantry.ListItemsByCategory(r.Context(), ids, page, pageSize)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *PantryHandler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.pantry.RecentActivity(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *PantryHandler) SearchBranded(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.pantry.SearchExternalCatalog(r.Context(), r.URL.Query().Get("name"), limit, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PantryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req service.AddItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	item, err := h.pantry.AddOrUpdateItem(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *PantryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req service.UpdateItemInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	item, err := h.pantry.UpdateItemDetails(r.Context(), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *PantryHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, h.logger, apperr.Validation("quantity is required"))
		return
	}

	item, err := h.pantry.UpdateQuantity(r.Context(), id, *req.Quantity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *PantryHandler) ToggleMonitor(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.pantry.ToggleMonitorLowStock(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PantryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.pantry.DeleteItem(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pageParams(r *http.Request) (page, pageSize int, err error) {
	if page, err = queryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if pageSize, err = queryInt(r, "pageSize"); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}
