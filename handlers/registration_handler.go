package handlers

import (
	"net/http"

	"github.com/bracketforge/esports-arena/middleware"
	"github.com/bracketforge/esports-arena/models"
	"github.com/bracketforge/esports-arena/services"
)

type RegistrationHandler struct {
	registrationService *services.RegistrationService
}

func NewRegistrationHandler(registrationService *services.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationService: registrationService}
}

// Register обрабатывает POST /tournaments/{tournamentID}/register.
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RegisterInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registration, err := h.registrationService.Register(r.Context(), tournamentID, input, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// List обрабатывает GET /tournaments/{tournamentID}/registrations.
func (h *RegistrationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registrations, err := h.registrationService.List(r.Context(), tournamentID, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	response := jsonResponse{
		"total":         len(registrations),
		"count":         len(registrations),
		"registrations": registrations,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type registrationStatusInput struct {
	Status models.RegistrationStatus `json:"status"`
}

// UpdateStatus обрабатывает PATCH /tournaments/{tournamentID}/registrations/{id}.
func (h *RegistrationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	registrationID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input registrationStatusInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	registration, err := h.registrationService.UpdateStatus(r.Context(), tournamentID, registrationID, input.Status, actor)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"registration": registration}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Remove обрабатывает DELETE /tournaments/{tournamentID}/registrations/{id}.
func (h *RegistrationHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	registrationID, err := urlParamInt(r, "id")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.registrationService.Remove(r.Context(), tournamentID, registrationID, actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
