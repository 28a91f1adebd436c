// Package api — HTTP API Integrator.
//
// Структура:
//   - handler.go          — Handler и интерфейсы зависимостей
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — logging, recovery, X-User
//   - response.go         — JSON-ответы и маппинг ошибок в HTTP коды
//   - validate.go         — разбор тела и валидация DTO
//   - dto.go              — request/response DTO
//   - run_handler.go      — /api/run-manage: запуск и runs
//   - schedule_handler.go — /api/run-manage: расписания
//   - config_handler.go   — /api/business-config, /healthz
//
// Все операции — POST с JSON телом. Ответы:
//
//	{"data": ...}
//	{"data": [...], "total": n}
//	{"error": {"code": "...", "message": "..."}}
package api
