package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/runnable/controlplane/internal/api/request"
	"github.com/runnable/controlplane/internal/api/response"
	"github.com/runnable/controlplane/internal/core"
	"github.com/runnable/controlplane/internal/model"
)

type Instance struct {
	svc *core.InstanceService
}

func NewInstance(svc *core.InstanceService) *Instance {
	return &Instance{svc: svc}
}

func (h *Instance) List(w http.ResponseWriter, r *http.Request) {
	owner, err := strconv.ParseInt(r.URL.Query().Get("owner_github_id"), 10, 64)
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "owner_github_id query parameter required")
		return
	}

	instances, err := h.svc.ListByOwner(r.Context(), owner)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, instances)
}

func (h *Instance) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateInstance
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst := &model.Instance{
		Name:             req.Name,
		OwnerGithubID:    req.OwnerGithubID,
		OwnerUsername:    req.OwnerUsername,
		MasterPod:        req.MasterPod,
		ParentID:         req.ParentID,
		IsTesting:        req.IsTesting,
		BuildID:          req.BuildID,
		ContextVersionID: req.ContextVersionID,
	}
	if err := h.svc.Create(r.Context(), inst); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusCreated, inst)
}

func (h *Instance) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inst)
}

func (h *Instance) GetByShortHash(w http.ResponseWriter, r *http.Request) {
	shortHash, err := request.RequireID(chi.URLParam(r, "shortHash"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	inst, err := h.svc.GetByShortHash(r.Context(), shortHash)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, inst)
}

func (h *Instance) Start(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Start)
}

func (h *Instance) Stop(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.svc.Stop)
}

func (h *Instance) lifecycle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string, actingUserGithubID int64) error) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.InstanceLifecycle
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), id, req.ActingUserGithubID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Instance) Delete(w http.ResponseWriter, r *http.Request) {
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

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrNoContainer):
		response.WriteError(w, http.StatusConflict, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
