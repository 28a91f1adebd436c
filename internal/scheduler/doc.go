// Package scheduler запускает procedures по cron-расписаниям.
//
// Расписания хранятся в ScheduleStore (см. runmanager); Scheduler лишь
// читает включённые и при срабатывании вызывает Trigger с input
// расписания и triggerBy "schedule:<name>".
//
// В integrator-scheduler Trigger — публикация в очередь runs.trigger
// (mq.TriggerPublisher); api-процесс потребляет очередь и создаёт
// AUTOMATIC runs. В одном процессе Trigger может напрямую вызывать
// RunManager.AutomaticTrigger через TriggerFunc.
//
// Cron-выражения — 5 полей (минута, час, день месяца, месяц, день недели)
// или дескрипторы (@daily, @every 1h).
package scheduler
