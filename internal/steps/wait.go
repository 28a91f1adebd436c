package steps

import (
	"context"
	"fmt"
	"time"
)

const (
	// StepIDWait — пауза между шагами (например, пока отработает CI).
	StepIDWait = "wait"

	maxWait = time.Hour
)

// waitParams — параметры wait шага.
type waitParams struct {
	DurationSec int `json:"durationSec" validate:"gte=0"`
	DurationMs  int `json:"durationMs" validate:"gte=0"`
}

// WaitStep — шаг задержки.
//
// Параметры:
//
//	{"durationSec": 10}   // или
//	{"durationMs": 500}
//
// Максимум — 1 час. Прерывается отменой контекста.
type WaitStep struct{}

// NewWaitStep создаёт WaitStep.
func NewWaitStep() *WaitStep {
	return &WaitStep{}
}

// ID возвращает идентификатор шага.
func (s *WaitStep) ID() string {
	return StepIDWait
}

// Validate проверяет длительность.
func (s *WaitStep) Validate(req *Request) error {
	_, err := s.parseDuration(req)
	return err
}

// Execute выполняет задержку.
func (s *WaitStep) Execute(ctx context.Context, req *Request) error {
	duration, err := s.parseDuration(req)
	if err != nil {
		return err
	}

	if err := req.Logf(ctx, "Waiting %s", duration); err != nil {
		return err
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStepCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// parseDuration извлекает длительность: durationSec, затем durationMs.
func (s *WaitStep) parseDuration(req *Request) (time.Duration, error) {
	var p waitParams
	if err := decodeParams(StepIDWait, req.Params, &p); err != nil {
		return 0, err
	}
	if err := validateStruct(StepIDWait, &p); err != nil {
		return 0, err
	}

	if p.DurationSec > int(maxWait/time.Second) || p.DurationMs > int(maxWait/time.Millisecond) {
		return 0, fmt.Errorf("%w: %s: duration exceeds %s", ErrValidation, StepIDWait, maxWait)
	}

	var d time.Duration
	switch {
	case p.DurationSec > 0:
		d = time.Duration(p.DurationSec) * time.Second
	case p.DurationMs > 0:
		d = time.Duration(p.DurationMs) * time.Millisecond
	default:
		return 0, fmt.Errorf("%w: %s: durationSec or durationMs is required", ErrValidation, StepIDWait)
	}
	return d, nil
}
