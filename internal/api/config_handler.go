package api

import (
	"net/http"
)

// GetProductList возвращает продукты.
// POST /api/business-config/get_product_list
func (h *Handler) GetProductList(w http.ResponseWriter, r *http.Request) {
	products, err := h.configs.GetProductList(r.Context())
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, products)
}

// GetProcedureList возвращает procedures продукта с раскрытыми шагами.
// POST /api/business-config/get_procedure_list
func (h *Handler) GetProcedureList(w http.ResponseWriter, r *http.Request) {
	var req ProcedureListRequest
	if !h.decode(w, r, &req) {
		return
	}

	procedures, err := h.configs.GetProcedureList(r.Context(), req.Product)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, procedures)
}

// Health — liveness probe.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": h.runs.ActiveRuns(),
	})
}
