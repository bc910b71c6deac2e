package calendar

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T // элементы на текущей странице
	Page     int // номер страницы (с 1)
	PageSize int // количество элементов на странице
	HasNext  bool
	Total    int // общее количество элементов
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Paginate возвращает срез items для указанной страницы и метаданные.
// page нумеруется с 1; pageSize <= 0 — все элементы одной страницей,
// pageSize выше MaxPageSize обрезается.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)

	if pageSize <= 0 {
		return Page[T]{Items: items, Page: 1, PageSize: total, Total: total}
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page <= 0 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page[T]{
		Items:    items[start:end],
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		Total:    total,
	}
}
