// Package steps содержит обработчики шагов procedures.
//
// # Интерфейс Step
//
//	type Step interface {
//	    ID() string
//	    Validate(req *Request) error
//	    Execute(ctx context.Context, req *Request) error
//	}
//
// ID обработчика совпадает с идентификатором шага в step.json.
// Request содержит product, procedureId, параметры шага из
// input.stepParams[stepID] и функцию Log для строк прогресса в лог run.
//
// # Registry
//
//	registry := steps.DefaultRegistry(deps) // fe-integration, webhook, wait
//	step, err := registry.Get("fe-integration")
//	if errors.Is(err, steps.ErrStepNotFound) {
//	    // обработчика нет
//	}
//
// # Шаги
//
//   - fe-integration (fe_integration.go) — обновление package info
//     business-репозиториев в FE-integration репозитории
//   - webhook (webhook.go) — JSON-уведомление на URL
//   - wait (wait.go) — пауза
//
// Повторов и отката шаги не делают: ошибка просто возвращается движку.
package steps
