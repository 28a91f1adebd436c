package api

import (
	"net/http"

	"github.com/google/uuid"
)

// ManualTrigger запускает procedure вручную.
// Ответ не ждёт выполнения: возвращается run в статусе PENDING.
// POST /api/run-manage/manual_trigger
func (h *Handler) ManualTrigger(w http.ResponseWriter, r *http.Request) {
	var req ManualTriggerRequest
	if !h.decode(w, r, &req) {
		return
	}

	run, err := h.runs.ManualTrigger(r.Context(), req.Input(), actor(r))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, RunRecordFromDomain(run))
}

// GetRunRecords возвращает страницу runs (новые первыми).
// POST /api/run-manage/get_run_records
func (h *Handler) GetRunRecords(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !h.decode(w, r, &req) {
		return
	}

	page, err := h.runs.GetRunRecords(r.Context(), req.Domain())
	if HandleError(w, h.logger, err) {
		return
	}

	result := make([]RunRecordResponse, len(page.Data))
	for i := range page.Data {
		result[i] = RunRecordFromDomain(&page.Data[i])
	}

	List(w, result, page.Total)
}

// GetRunRecord возвращает run по id.
// POST /api/run-manage/get_run_record
func (h *Handler) GetRunRecord(w http.ResponseWriter, r *http.Request) {
	var req IDRequest
	if !h.decode(w, r, &req) {
		return
	}

	run, err := h.runs.GetRunRecord(r.Context(), uuid.MustParse(req.ID))
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, RunRecordFromDomain(run))
}
