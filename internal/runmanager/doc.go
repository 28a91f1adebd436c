// Package runmanager управляет жизненным циклом runs и расписаний.
//
// Trigger создаёт run record в статусе PENDING, сохраняет его и сразу
// возвращает вызывающему. Выполнение procedure идёт в фоновой задаче
// (одна горутина на run) с контекстом, отвязанным от запроса:
//
//	ManualTrigger / AutomaticTrigger
//	  → RunStore.Create(PENDING)
//	  → go execute: Engine.Execute(params, appendLog)
//	  → RunStore.Update(COMPLETED | FAILED)
//	  → Notifier.RunFinished
//
// RUNNING в хранилище не пишется. Если процесс упал во время выполнения,
// запись остаётся PENDING; Recover при старте переводит такие записи
// в FAILED с пояснением в логе.
//
// Строки лога дописываются через read-modify-write: каждая запись
// перечитывает run из хранилища, добавляет "[<timestamp>] <message>"
// и сохраняет.
package runmanager
