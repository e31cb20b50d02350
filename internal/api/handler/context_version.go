package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/runnable/controlplane/internal/api/request"
	"github.com/runnable/controlplane/internal/api/response"
	"github.com/runnable/controlplane/internal/core"
)

type ContextVersion struct {
	svc *core.ContextVersionService
}

func NewContextVersion(svc *core.ContextVersionService) *ContextVersion {
	return &ContextVersion{svc: svc}
}

func (h *ContextVersion) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cv, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cv)
}

func (h *ContextVersion) ListByBuild(w http.ResponseWriter, r *http.Request) {
	buildID, err := request.RequireID(chi.URLParam(r, "buildID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cvs, err := h.svc.ListByBuild(r.Context(), buildID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, cvs)
}

func (h *ContextVersion) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
