package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pantrytracker/internal/service"
)

type HouseholdHandler struct {
	households *service.HouseholdService
	logger     *slog.Logger
}

func NewHouseholdHandler(hs *service.HouseholdService, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{households: hs, logger: logger}
}

type createHouseholdRequest struct {
	Name        string `json:"name"`
	AdminUserID int64  `json:"adminUserId"`
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	household, err := h.households.CreateHousehold(r.Context(), req.AdminUserID, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, household)
}

type joinHouseholdRequest struct {
	JoinCode string `json:"joinCode"`
}

func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinHouseholdRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.households.JoinHousehold(r.Context(), req.JoinCode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *HouseholdHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.households.GetMembers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *HouseholdHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.households.RemoveMember(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
