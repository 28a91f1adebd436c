// Package mq — обмен событиями runs через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, queues, bindings
//   - publisher.go  — публикация; TriggerPublisher и RunNotifier
//   - consumer.go   — потребление с ack/nack; TriggerHandler
//
// Сообщения:
//   - run.trigger  — integrator-scheduler просит запустить procedure;
//     integrator-api вызывает RunManager.AutomaticTrigger
//   - run.finished — run дошёл до COMPLETED или FAILED
package mq
