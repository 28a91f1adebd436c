// Package telemetry обеспечивает наблюдаемость сервисов Integrator.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики (runs, шаги, конфиг, GitLab)
//
// Все бинарники используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
