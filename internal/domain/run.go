package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition — недопустимый переход статуса run record.
var ErrInvalidTransition = errors.New("invalid run status transition")

// LogTimeFormat — формат timestamp в строках лога (ISO 8601, миллисекунды, UTC).
const LogTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RunRecord — одна попытка выполнения procedure с конкретным input.
//
// Создаётся при trigger, изменяется только RunManager (статус)
// и callback'ом лога. Движок записи не удаляет.
type RunRecord struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Log — строки лога вида "[timestamp] message", склеенные через \n.
	Log string `json:"log"`

	// Input — входные параметры: procedureId, product, stepParams.
	Input Input `json:"input"`

	// Status — текущий статус.
	Status RunStatus `json:"status"`

	// TriggerType — ручной или автоматический запуск.
	TriggerType TriggerType `json:"triggerType"`

	// TriggerBy — кто запустил (пользователь или имя расписания).
	TriggerBy string `json:"triggerBy"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRunRecord создаёт run record в статусе PENDING с пустым логом.
func NewRunRecord(input Input, triggerType TriggerType, triggerBy string, now time.Time) *RunRecord {
	return &RunRecord{
		ID:          uuid.New(),
		Input:       input.Clone(),
		Status:      RunStatusPending,
		TriggerType: triggerType,
		TriggerBy:   triggerBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsFinished возвращает true, если run завершён.
func (r *RunRecord) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Transition переводит run в статус next.
// Статус никогда не откатывается назад.
func (r *RunRecord) Transition(next RunStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

// AppendLog дописывает строку в конец лога.
func (r *RunRecord) AppendLog(message string, now time.Time) {
	line := FormatLogLine(message, now)
	if r.Log == "" {
		r.Log = line
	} else {
		r.Log += "\n" + line
	}
	r.UpdatedAt = now
}

// LogLines возвращает лог построчно.
func (r *RunRecord) LogLines() []string {
	if r.Log == "" {
		return nil
	}
	return strings.Split(r.Log, "\n")
}

// FormatLogLine форматирует строку лога: "[<ISO timestamp>] <message>".
func FormatLogLine(message string, now time.Time) string {
	return "[" + now.UTC().Format(LogTimeFormat) + "] " + message
}
