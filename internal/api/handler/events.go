package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/runnable/controlplane/internal/api/request"
	"github.com/runnable/controlplane/internal/api/response"
	"github.com/runnable/controlplane/internal/dispatch"
)

// Events ingests dock and hook events and hands them to the dispatcher.
// Invalid payloads are rejected here with a 4xx and never enter the pipeline;
// the sender's retry loop must not re-send them.
type Events struct {
	dispatcher *dispatch.Dispatcher
}

func NewEvents(dispatcher *dispatch.Dispatcher) *Events {
	return &Events{dispatcher: dispatcher}
}

type eventEnvelope struct {
	Name    string          `json:"name" validate:"required"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

func (h *Events) Ingest(w http.ResponseWriter, r *http.Request) {
	var ev eventEnvelope
	if err := request.Decode(r, &ev); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.dispatcher.Dispatch(r.Context(), ev.Name, ev.Payload)
	switch {
	case err == nil:
		response.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
	case errors.Is(err, dispatch.ErrUnknownJob):
		response.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, dispatch.ErrInvalidJob):
		response.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
