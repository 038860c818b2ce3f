package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/Rollout/internal/domain"
	"github.com/shaiso/Rollout/internal/repo"
)

// ListPasses обрабатывает GET /api/v1/passes.
//
// Query параметры: connection, request_id, status, limit, offset.
func (h *Handler) ListPasses(w http.ResponseWriter, r *http.Request) {
	if h.passes == nil {
		Unavailable(w, "pass history requires a database")
		return
	}

	q := r.URL.Query()
	filter := repo.PassFilter{
		Connection: q.Get("connection"),
	}

	if v := q.Get("request_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			BadRequest(w, "invalid request_id")
			return
		}
		filter.RequestID = &id
	}
	if v := q.Get("status"); v != "" {
		status := domain.ParsePassStatus(strings.ToUpper(v))
		if string(status) != strings.ToUpper(v) {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = n
	}

	passes, err := h.passes.List(r.Context(), filter)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	List(w, PassesFromDomain(passes), len(passes))
}

// GetPass обрабатывает GET /api/v1/passes/{id}.
func (h *Handler) GetPass(w http.ResponseWriter, r *http.Request) {
	if h.passes == nil {
		Unavailable(w, "pass history requires a database")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pass ID")
		return
	}

	pass, err := h.passes.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pass not found") {
		return
	}

	Success(w, PassFromDomain(*pass))
}
