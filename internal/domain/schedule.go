package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultActor — значение createdBy/updatedBy по умолчанию.
const DefaultActor = "manual"

// ScheduleConfig — сохранённое определение расписания.
//
// Сам запуск по cron делает внешний планировщик: он вызывает trigger
// RunManager'а с Input расписания.
type ScheduleConfig struct {
	// ID — уникальный идентификатор расписания.
	ID uuid.UUID `json:"id"`

	// Name — имя расписания.
	Name string `json:"name"`

	// Description — описание.
	Description string `json:"description"`

	// CronExpression — cron-выражение (5 полей).
	// Примеры:
	//   "0 2 * * *"   — каждый день в 2:00
	//   "*/30 * * * *" — каждые 30 минут
	CronExpression string `json:"cronExpression"`

	// IsEnabled — выключенные расписания планировщик игнорирует.
	IsEnabled bool `json:"isEnabled"`

	// Input — параметры запуска, того же вида, что RunRecord.Input.
	Input Input `json:"input"`

	CreatedBy string    `json:"createdBy"`
	UpdatedBy string    `json:"updatedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SchedulePatch — частичное обновление расписания.
// Nil-поля не меняются; Input мержится поверх существующего.
type SchedulePatch struct {
	Name           *string
	Description    *string
	CronExpression *string
	IsEnabled      *bool
	Input          Input
}

// Apply применяет patch к расписанию.
func (s *ScheduleConfig) Apply(p SchedulePatch, updatedBy string, now time.Time) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.CronExpression != nil {
		s.CronExpression = *p.CronExpression
	}
	if p.IsEnabled != nil {
		s.IsEnabled = *p.IsEnabled
	}
	if p.Input != nil {
		s.Input = s.Input.Merge(p.Input)
	}
	if updatedBy == "" {
		updatedBy = DefaultActor
	}
	s.UpdatedBy = updatedBy
	s.UpdatedAt = now
}
