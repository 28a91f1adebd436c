package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)
	post := func(pattern string, fn http.HandlerFunc) {
		mux.Handle("POST "+pattern, chain(fn))
	}

	// Run management
	post("/api/run-manage/manual_trigger", h.ManualTrigger)
	post("/api/run-manage/get_run_records", h.GetRunRecords)
	post("/api/run-manage/get_run_record", h.GetRunRecord)
	post("/api/run-manage/create_schedule", h.CreateSchedule)
	post("/api/run-manage/update_schedule", h.UpdateSchedule)
	post("/api/run-manage/get_schedule", h.GetSchedule)
	post("/api/run-manage/get_schedules", h.GetSchedules)
	post("/api/run-manage/delete_schedule", h.DeleteSchedule)

	// Business config
	post("/api/business-config/get_product_list", h.GetProductList)
	post("/api/business-config/get_procedure_list", h.GetProcedureList)

	// Service
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
}
