package engine

import (
	"errors"
	"fmt"
)

// Ошибки выполнения.
var (
	// ErrProcedureNotFound — procedure не найдена для продукта.
	ErrProcedureNotFound = errors.New("procedure not found")

	// ErrUnknownStep — для шага не зарегистрирован обработчик.
	ErrUnknownStep = errors.New("unknown step")

	// ErrLogEmit — не удалось записать строку лога.
	ErrLogEmit = errors.New("log emit failed")
)

// StepError — ошибка обработчика шага.
type StepError struct {
	StepID string
	Err    error
}

// Error реализует интерфейс error.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.StepID, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *StepError) Unwrap() error {
	return e.Err
}
