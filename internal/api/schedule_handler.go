package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Integrator/internal/runmanager"
)

// CreateSchedule создаёт расписание.
// POST /api/run-manage/create_schedule
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}

	s, err := h.runs.CreateSchedule(r.Context(), runmanager.NewSchedule{
		Name:           req.Name,
		Description:    req.Description,
		CronExpression: req.CronExpression,
		IsEnabled:      enabled,
		Input:          req.Input(),
	}, actor(r))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, ScheduleFromDomain(s, h.now()))
}

// UpdateSchedule частично обновляет расписание; input мержится.
// POST /api/run-manage/update_schedule
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req UpdateScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.runs.UpdateSchedule(r.Context(), uuid.MustParse(req.ID), req.Patch(), actor(r))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, ScheduleFromDomain(s, h.now()))
}

// GetSchedule возвращает расписание по id.
// POST /api/run-manage/get_schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	var req IDRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.runs.GetSchedule(r.Context(), uuid.MustParse(req.ID))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, ScheduleFromDomain(s, h.now()))
}

// GetSchedules возвращает страницу расписаний.
// POST /api/run-manage/get_schedules
func (h *Handler) GetSchedules(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !h.decode(w, r, &req) {
		return
	}

	page, err := h.runs.GetSchedules(r.Context(), req.Domain())
	if HandleError(w, h.logger, err) {
		return
	}

	now := h.now()
	result := make([]ScheduleResponse, len(page.Data))
	for i := range page.Data {
		result[i] = ScheduleFromDomain(&page.Data[i], now)
	}

	List(w, result, page.Total)
}

// DeleteSchedule удаляет расписание.
// POST /api/run-manage/delete_schedule
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	var req IDRequest
	if !h.decode(w, r, &req) {
		return
	}

	if HandleError(w, h.logger, h.runs.DeleteSchedule(r.Context(), uuid.MustParse(req.ID))) {
		return
	}

	Success(w, DeleteResponse{Success: true})
}
