// Package scm — клиент системы контроля версий.
//
// Client описывает минимальный набор операций, нужный шагам Integrator:
// листинг дерева, чтение файла, создание ветки и коммита. GitLab —
// реализация поверх GitLab REST API v4.
package scm
