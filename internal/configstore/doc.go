// Package configstore загружает бизнес-конфигурацию Integrator.
//
// Конфигурация — набор JSON-документов:
//
//	product.json             — продукты и их procedures
//	procedure.json           — procedures и упорядоченные списки шагов
//	step.json                — определения шагов (name, description, paramsDef)
//	business-repo.json       — продукт → business-репозиторий → доступы
//	fe-integration-repo.json — FE-integration репозиторий → доступы
//
// Документы читаются из Source (каталог на диске или S3) и кэшируются
// в Cache по имени файла с TTL (по умолчанию 60 секунд). Ошибки чтения
// не кэшируются. Параллельные загрузки одного файла схлопываются.
package configstore
