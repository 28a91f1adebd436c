package configstore

import (
	"errors"
	"fmt"
)

// Ошибки загрузки конфигурации.
var (
	// ErrConfigRead — файл отсутствует или не читается.
	ErrConfigRead = errors.New("config read failed")

	// ErrConfigParse — файл не является корректным JSON нужной формы.
	ErrConfigParse = errors.New("config parse failed")

	// ErrNotFound — ссылка на несуществующий product/procedure/step/repo.
	ErrNotFound = errors.New("config entry not found")
)

// Виды сущностей для NotFoundError.
const (
	KindProduct           = "product"
	KindProcedure         = "procedure"
	KindStep              = "step"
	KindFeIntegrationRepo = "fe-integration-repo"
)

// NotFoundError — висячая ссылка в конфигурации.
type NotFoundError struct {
	Kind string
	ID   string
}

// Error реализует интерфейс error.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Is позволяет проверять errors.Is(err, ErrNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
