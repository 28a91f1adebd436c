package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/scheduler"
)

// Run DTOs

// ManualTriggerRequest — запрос на ручной запуск procedure.
type ManualTriggerRequest struct {
	ProcedureID string                    `json:"procedureId" validate:"required"`
	Product     string                    `json:"product" validate:"required"`
	StepParams  map[string]map[string]any `json:"stepParams" validate:"required"`
}

// Input собирает domain.Input из запроса.
func (r ManualTriggerRequest) Input() domain.Input {
	return domain.NewInput(r.ProcedureID, r.Product, r.StepParams)
}

// PageRequest — запрос страницы списка.
type PageRequest struct {
	Page     int `json:"page" validate:"omitempty,min=1"`
	PageSize int `json:"pageSize" validate:"omitempty,min=1,max=100"`
}

// Domain конвертирует запрос в domain.Page с умолчаниями.
func (r PageRequest) Domain() domain.Page {
	return domain.Page{Page: r.Page, PageSize: r.PageSize}.Normalize()
}

// IDRequest — запрос с id записи.
type IDRequest struct {
	ID string `json:"id" validate:"required,uuid"`
}

// RunRecordResponse — ответ с run record.
type RunRecordResponse struct {
	ID          uuid.UUID          `json:"id"`
	Log         string             `json:"log"`
	Input       domain.Input       `json:"input"`
	Status      domain.RunStatus   `json:"status"`
	TriggerType domain.TriggerType `json:"triggerType"`
	TriggerBy   string             `json:"triggerBy"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// RunRecordFromDomain конвертирует domain.RunRecord в RunRecordResponse.
func RunRecordFromDomain(r *domain.RunRecord) RunRecordResponse {
	return RunRecordResponse{
		ID:          r.ID,
		Log:         r.Log,
		Input:       r.Input,
		Status:      r.Status,
		TriggerType: r.TriggerType,
		TriggerBy:   r.TriggerBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание расписания.
// isEnabled по умолчанию true.
type CreateScheduleRequest struct {
	ManualTriggerRequest

	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	CronExpression string `json:"cronExpression" validate:"required"`
	IsEnabled      *bool  `json:"isEnabled"`
}

// UpdateScheduleRequest — частичное обновление расписания.
type UpdateScheduleRequest struct {
	ID             string         `json:"id" validate:"required,uuid"`
	Name           *string        `json:"name" validate:"omitempty,min=1"`
	Description    *string        `json:"description"`
	CronExpression *string        `json:"cronExpression" validate:"omitempty,min=1"`
	IsEnabled      *bool          `json:"isEnabled"`
	Input          map[string]any `json:"input"`
}

// Patch конвертирует запрос в domain.SchedulePatch.
func (r UpdateScheduleRequest) Patch() domain.SchedulePatch {
	return domain.SchedulePatch{
		Name:           r.Name,
		Description:    r.Description,
		CronExpression: r.CronExpression,
		IsEnabled:      r.IsEnabled,
		Input:          domain.Input(r.Input),
	}
}

// ScheduleResponse — ответ с расписанием.
type ScheduleResponse struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	CronExpression string       `json:"cronExpression"`
	IsEnabled      bool         `json:"isEnabled"`
	Input          domain.Input `json:"input"`
	NextRunAt      *time.Time   `json:"nextRunAt,omitempty"`
	CreatedBy      string       `json:"createdBy"`
	UpdatedBy      string       `json:"updatedBy"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// ScheduleFromDomain конвертирует domain.ScheduleConfig в ScheduleResponse.
// NextRunAt заполняется только для включённых расписаний.
func ScheduleFromDomain(s *domain.ScheduleConfig, now time.Time) ScheduleResponse {
	resp := ScheduleResponse{
		ID:             s.ID,
		Name:           s.Name,
		Description:    s.Description,
		CronExpression: s.CronExpression,
		IsEnabled:      s.IsEnabled,
		Input:          s.Input,
		CreatedBy:      s.CreatedBy,
		UpdatedBy:      s.UpdatedBy,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.IsEnabled {
		if next, err := scheduler.NextRun(s.CronExpression, now); err == nil {
			resp.NextRunAt = &next
		}
	}
	return resp
}

// DeleteResponse — результат удаления.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// Business config DTOs

// ProcedureListRequest — запрос списка procedures продукта.
type ProcedureListRequest struct {
	Product string `json:"product" validate:"required"`
}
