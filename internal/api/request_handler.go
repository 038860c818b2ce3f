package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// CreateRequest обрабатывает POST /api/v1/requests.
// Запрос публикуется в deploys.requested, ответ 202 с ID запроса.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		Unavailable(w, "broker is not configured")
		return
	}

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}

	if len(body.Queue) == 0 {
		InvalidRequest(w, "queue is required")
		return
	}
	for _, entry := range body.Queue {
		if strings.TrimSpace(entry) == "" {
			InvalidRequest(w, "queue entries must not be empty")
			return
		}
	}
	if len(h.connections) > 0 {
		for _, name := range body.Connections {
			if !h.connections[name] {
				InvalidRequest(w, "unknown connection: "+name)
				return
			}
		}
	}

	req := body.ToDomain()
	if err := h.dispatcher.PublishDeployRequested(r.Context(), req); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("deploy request accepted",
		"request_id", req.ID,
		"queue", req.Queue,
		"connections", req.Connections,
	)
	Accepted(w, RequestFromDomain(req))
}
