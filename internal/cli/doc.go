// Package cli реализует инструмент командной строки Integrator.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Integrator API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// Используется для запуска procedures, просмотра runs, управления
// schedules и просмотра бизнес-конфигурации.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Integrator API. Все вызовы — POST с JSON телом,
// ответы приходят в конверте {"data": ..., "total": N} или
// {"error": {"code", "message"}}. Ошибки API возвращаются как *APIError.
// Пользователь передаётся в заголовке X-User.
//
//	client := cli.NewClient("http://localhost:3000", "alice")
//	run, err := client.TriggerRun(ctx, cli.TriggerRequest{...})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: integrator run list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - run: list, trigger, show
//   - schedule: list, show, create, update, delete, enable, disable
//   - config: products, procedures
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
