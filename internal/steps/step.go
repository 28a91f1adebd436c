package steps

import (
	"context"
	"errors"
	"fmt"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — шаг не зарегистрирован в реестре.
	ErrStepNotFound = errors.New("step handler not found")

	// ErrValidation — некорректные параметры шага.
	ErrValidation = errors.New("invalid step params")

	// ErrStepCancelled — выполнение шага прервано контекстом.
	ErrStepCancelled = errors.New("step execution cancelled")
)

// Step — обработчик шага procedure.
//
// ID совпадает с идентификатором шага в step.json. Движок сначала
// вызывает Validate, затем Execute.
type Step interface {
	// ID возвращает идентификатор шага.
	ID() string

	// Validate проверяет параметры до выполнения.
	// Ошибка оборачивает ErrValidation.
	Validate(req *Request) error

	// Execute выполняет шаг.
	Execute(ctx context.Context, req *Request) error
}

// LogFunc дописывает строку в лог run.
type LogFunc func(ctx context.Context, message string) error

// Request — входные данные шага.
type Request struct {
	// Product — идентификатор продукта.
	Product string

	// ProcedureID — идентификатор procedure.
	ProcedureID string

	// Params — stepParams[stepID] из input run (пустая map, если не заданы).
	Params map[string]any

	// Log — строки прогресса в лог run. Может быть nil.
	Log LogFunc
}

// NewRequest создаёт Request.
func NewRequest(product, procedureID string, params map[string]any, log LogFunc) *Request {
	if params == nil {
		params = make(map[string]any)
	}
	return &Request{
		Product:     product,
		ProcedureID: procedureID,
		Params:      params,
		Log:         log,
	}
}

// Logf пишет строку прогресса в лог run.
func (r *Request) Logf(ctx context.Context, format string, args ...any) error {
	if r.Log == nil {
		return nil
	}
	return r.Log(ctx, fmt.Sprintf(format, args...))
}

// GetParamString извлекает строковый параметр.
func GetParamString(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
