package api

import "net/http"

// ListSchedules обрабатывает GET /api/v1/schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, _ *http.Request) {
	if h.schedules == nil {
		List(w, []ScheduleResponse{}, 0)
		return
	}

	names := h.schedules.Names()
	result := make([]ScheduleResponse, 0, len(names))
	for _, name := range names {
		item := ScheduleResponse{Name: name}
		if next, ok := h.schedules.Next(name); ok {
			item.NextDue = &next
		}
		result = append(result, item)
	}

	List(w, result, len(result))
}
