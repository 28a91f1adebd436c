// Package engine выполняет procedures.
//
// Engine разворачивает procedure продукта в упорядоченный список шагов
// (через configstore), и выполняет шаги строго последовательно в
// объявленном порядке:
//
//	Starting execution...
//	Starting step: <name> (<id>)
//	Step <name> completed successfully
//	...
//	Execution completed successfully | Execution failed: <message>
//
// Первая ошибка останавливает выполнение: оставшиеся шаги не
// вызываются, выполненные не откатываются. Каждая строка лога пишется
// через LogFunc синхронно; ошибка LogFunc прерывает выполнение сразу
// (ErrLogEmit).
package engine
