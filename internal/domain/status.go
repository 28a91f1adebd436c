package domain

// RunStatus — статус выполнения run record.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	        ↘         ↘ FAILED
//	          FAILED (при рестарте сервиса)
//
// RUNNING в БД не пишется: пока фоновая задача жива, запись остаётся
// в PENDING. Recovery переводит такие записи в FAILED.
type RunStatus string

const (
	// RunStatusPending — run создан, выполнение ещё не завершено.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run выполняется.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusCompleted — все шаги завершены успешно.
	RunStatusCompleted RunStatus = "COMPLETED"

	// RunStatusFailed — выполнение завершилось ошибкой или было прервано.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус известен.
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода s → next.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning || next.IsTerminal()
	case RunStatusRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

// TriggerType — способ запуска run.
type TriggerType string

const (
	// TriggerTypeManual — запуск пользователем через API/CLI.
	TriggerTypeManual TriggerType = "MANUAL"

	// TriggerTypeAutomatic — запуск по расписанию.
	TriggerTypeAutomatic TriggerType = "AUTOMATIC"
)
