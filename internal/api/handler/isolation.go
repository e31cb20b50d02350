package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/runnable/controlplane/internal/api/request"
	"github.com/runnable/controlplane/internal/api/response"
	"github.com/runnable/controlplane/internal/core"
	"github.com/runnable/controlplane/internal/model"
)

type Isolation struct {
	svc    *core.IsolationService
	cfgSvc *core.AutoIsolationConfigService
}

func NewIsolation(svc *core.IsolationService, cfgSvc *core.AutoIsolationConfigService) *Isolation {
	return &Isolation{svc: svc, cfgSvc: cfgSvc}
}

func (h *Isolation) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateIsolation
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	iso, err := h.svc.Create(r.Context(), req.MasterInstanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, iso)
}

func (h *Isolation) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	iso, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, iso)
}

func (h *Isolation) Kill(w http.ResponseWriter, r *http.Request) {
	h.groupOp(w, r, h.svc.Kill)
}

func (h *Isolation) Redeploy(w http.ResponseWriter, r *http.Request) {
	h.groupOp(w, r, h.svc.Redeploy)
}

func (h *Isolation) groupOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Isolation) CreateAutoConfig(w http.ResponseWriter, r *http.Request) {
	var req request.CreateAutoIsolationConfig
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := &model.AutoIsolationConfig{
		InstanceID:            req.InstanceID,
		RequestedDependencies: req.RequestedDependencies,
	}
	if err := h.cfgSvc.Create(r.Context(), cfg); err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, cfg)
}

func (h *Isolation) GetAutoConfig(w http.ResponseWriter, r *http.Request) {
	instanceID, err := request.RequireID(chi.URLParam(r, "instanceID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg, err := h.cfgSvc.GetByInstance(r.Context(), instanceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cfg)
}

func (h *Isolation) DeleteAutoConfig(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.cfgSvc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
