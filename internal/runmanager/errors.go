package runmanager

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound — run record не найден.
	ErrRunNotFound = errors.New("run record not found")

	// ErrScheduleNotFound — расписание не найдено.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrInvalidSchedule — некорректные поля расписания.
	ErrInvalidSchedule = errors.New("invalid schedule")

	// ErrStopped — менеджер остановлен и новые runs не принимает.
	ErrStopped = errors.New("run manager is stopped")
)

// Виды NotFoundError.
const (
	KindRun      = "run"
	KindSchedule = "schedule"
)

// NotFoundError — сущность с указанным id не найдена.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrRunNotFound)
// и errors.Is(err, ErrScheduleNotFound).
func (e *NotFoundError) Is(target error) bool {
	switch target {
	case ErrRunNotFound:
		return e.Kind == KindRun
	case ErrScheduleNotFound:
		return e.Kind == KindSchedule
	}
	return false
}
