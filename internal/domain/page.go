package domain

// Значения пагинации по умолчанию.
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Page — запрос страницы (page начинается с 1).
type Page struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize подставляет значения по умолчанию.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Offset — количество пропускаемых записей.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.PageSize
}

// Limit — размер страницы.
func (p Page) Limit() int {
	return p.Normalize().PageSize
}

// PageResult — страница данных и общее количество записей.
type PageResult[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}
