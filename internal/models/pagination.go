package models

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Paginate slices items for the requested page. A non-positive pageSize
// selects the default; page numbers start at 1.
func Paginate[T any](items []T, page, pageSize int) ([]T, *Pagination) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	total := len(items)
	start := total
	// Compare before multiplying so huge page numbers cannot overflow.
	if page-1 <= total/pageSize {
		start = (page - 1) * pageSize
	}
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return items[start:end], &Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
