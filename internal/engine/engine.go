package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Integrator/internal/configstore"
	"github.com/shaiso/Integrator/internal/domain"
	"github.com/shaiso/Integrator/internal/steps"
	"github.com/shaiso/Integrator/internal/telemetry"
)

// Строки лога выполнения.
const (
	msgStarting      = "Starting execution..."
	msgStepStarting  = "Starting step: %s (%s)"
	msgStepCompleted = "Step %s completed successfully"
	msgStepFailed    = "Step %s failed: %s"
	msgCompleted     = "Execution completed successfully"
	msgFailed        = "Execution failed: %s"
)

// LogFunc пишет строку в лог run.
type LogFunc func(ctx context.Context, message string) error

// ProcedureResolver разворачивает procedure продукта в список шагов.
type ProcedureResolver interface {
	GetProcedure(ctx context.Context, product, procedureID string) (domain.Procedure, error)
}

// StepResolver возвращает обработчик шага по ID.
type StepResolver interface {
	Get(id string) (steps.Step, error)
}

// Params — что выполнять.
type Params struct {
	ProcedureID string
	Product     string
	// StepParams — stepID → параметры шага.
	StepParams map[string]map[string]any
}

// ParamsFromInput собирает Params из input run.
func ParamsFromInput(in domain.Input) Params {
	return Params{
		ProcedureID: in.ProcedureID(),
		Product:     in.Product(),
		StepParams:  in.StepParams(),
	}
}

// Engine — последовательный исполнитель procedures.
type Engine struct {
	procedures ProcedureResolver
	steps      StepResolver
	logger     *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	// Procedures — источник определений (обычно *configstore.Provider).
	Procedures ProcedureResolver

	// Steps — реестр обработчиков (обычно *steps.Registry).
	Steps StepResolver

	// Logger
	Logger *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		procedures: cfg.Procedures,
		steps:      cfg.Steps,
		logger:     cfg.Logger.With("component", "engine"),
	}
}

// Execute выполняет procedure и пишет ход выполнения через emit.
//
// Возвращает ошибку первого упавшего шага (или резолва procedure).
// Если упал сам emit, ошибка оборачивает ErrLogEmit и финальная строка
// "Execution failed" не пишется.
func (e *Engine) Execute(ctx context.Context, p Params, emit LogFunc) error {
	logger := telemetry.WithProduct(e.logger, p.Product, p.ProcedureID)
	log := emitter(emit)

	if err := log(ctx, msgStarting); err != nil {
		return err
	}

	if err := e.run(ctx, p, log, logger); err != nil {
		if errors.Is(err, ErrLogEmit) {
			logger.Error("log emit failed, execution aborted", "error", err)
			return err
		}
		logger.Warn("execution failed", "error", err)
		if emitErr := log(ctx, fmt.Sprintf(msgFailed, failureMessage(err))); emitErr != nil {
			return errors.Join(err, emitErr)
		}
		return err
	}

	logger.Info("execution completed")
	return log(ctx, msgCompleted)
}

// run резолвит procedure и выполняет шаги по порядку.
func (e *Engine) run(ctx context.Context, p Params, log LogFunc, logger *slog.Logger) error {
	// 1. Procedure и её шаги
	procedure, err := e.procedures.GetProcedure(ctx, p.Product, p.ProcedureID)
	if err != nil {
		if errors.Is(err, configstore.ErrNotFound) {
			return fmt.Errorf("%w: %s for product %s: %w", ErrProcedureNotFound, p.ProcedureID, p.Product, err)
		}
		return err
	}

	// 2. Шаги строго в объявленном порядке
	for _, step := range procedure.Steps {
		if err := e.runStep(ctx, p, step, log, logger); err != nil {
			return err
		}
	}

	return nil
}

// runStep выполняет один шаг.
func (e *Engine) runStep(ctx context.Context, p Params, step domain.Step, log LogFunc, logger *slog.Logger) error {
	name := step.Name
	if name == "" {
		name = step.ID
	}
	logger = telemetry.WithStepID(logger, step.ID)

	if err := log(ctx, fmt.Sprintf(msgStepStarting, name, step.ID)); err != nil {
		return err
	}

	handler, err := e.steps.Get(step.ID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownStep, step.ID)
	}

	params := p.StepParams[step.ID]
	if params == nil {
		params = map[string]any{}
	}
	req := steps.NewRequest(p.Product, p.ProcedureID, params, steps.LogFunc(log))

	start := time.Now()
	err = handler.Validate(req)
	if err == nil {
		err = handler.Execute(ctx, req)
	}
	telemetry.StepDuration.WithLabelValues(step.ID, telemetry.Result(err)).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ErrLogEmit) {
			return err
		}
		logger.Warn("step failed", "error", err, "duration", time.Since(start))
		if emitErr := log(ctx, fmt.Sprintf(msgStepFailed, name, err.Error())); emitErr != nil {
			return errors.Join(&StepError{StepID: step.ID, Err: err}, emitErr)
		}
		return &StepError{StepID: step.ID, Err: err}
	}

	logger.Debug("step completed", "duration", time.Since(start))
	return log(ctx, fmt.Sprintf(msgStepCompleted, name))
}

// failureMessage — текст ошибки для строки "Execution failed".
// Для ошибки шага берётся сообщение обработчика: шаг уже назван
// в предыдущей строке лога.
func failureMessage(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Err.Error()
	}
	return err.Error()
}

// emitter оборачивает ошибки emit в ErrLogEmit.
func emitter(emit LogFunc) LogFunc {
	return func(ctx context.Context, message string) error {
		if err := emit(ctx, message); err != nil {
			return fmt.Errorf("%w: %w", ErrLogEmit, err)
		}
		return nil
	}
}
