package handlers

import (
	"net/http"
	"strconv"

	"github.com/bracketforge/esports-arena/middleware"
	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/repositories"
	"github.com/bracketforge/esports-arena/services"
)

type TournamentHandler struct {
	tournamentService *services.TournamentService
}

func NewTournamentHandler(tournamentService *services.TournamentService) *TournamentHandler {
	return &TournamentHandler{tournamentService: tournamentService}
}

func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	var input services.CreateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), input, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListTournamentsFilter{Limit: 10}

	query := r.URL.Query()
	if statusStr := query.Get("status"); statusStr != "" {
		status := models.TournamentStatus(statusStr)
		if !status.Valid() {
			badRequestResponse(w, r, services.ErrTournamentInvalidStatus)
			return
		}
		filter.Status = &status
	}
	if game := query.Get("game"); game != "" {
		filter.Game = &game
	}
	if formatStr := query.Get("format"); formatStr != "" {
		format := models.TournamentFormat(formatStr)
		if !format.Valid() {
			badRequestResponse(w, r, services.ErrTournamentInvalidFormat)
			return
		}
		filter.Format = &format
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, convErr := strconv.Atoi(limitStr); convErr == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if pageStr := query.Get("page"); pageStr != "" {
		if page, convErr := strconv.Atoi(pageStr); convErr == nil && page > 1 {
			filter.Offset = (page - 1) * filter.Limit
		}
	}

	list, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, list, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateTournamentInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Update(r.Context(), id, input, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.tournamentService.Delete(r.Context(), id, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionInput struct {
	Status models.TournamentStatus `json:"status"`
}

// Transition обрабатывает PATCH /tournaments/{id}/status.
func (h *TournamentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input transitionInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Transition(r.Context(), id, input.Status, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	id, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	contentType := r.Header.Get("Content-Type")
	tournament, err := h.tournamentService.UploadLogo(r.Context(), id, actor, contentType, r.Body)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
