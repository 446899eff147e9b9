package utils

import (
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1
)

// PageParams holds offset pagination parameters read from the request.
type PageParams struct {
	Page     int // 1-based
	PageSize int
	Offset   int
	Limit    int
}

// PageMeta is returned alongside paginated data so clients can navigate.
type PageMeta struct {
	Page         int   `json:"page"`
	PageSize     int   `json:"page_size"`
	TotalPages   int   `json:"total_pages"`
	TotalItems   int64 `json:"total_items"`
	HasPrevious  bool  `json:"has_previous"`
	HasNext      bool  `json:"has_next"`
	PreviousPage *int  `json:"previous_page,omitempty"`
	NextPage     *int  `json:"next_page,omitempty"`
}

// PaginatedResponse wraps one page of data with its metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination PageMeta    `json:"pagination"`
}

// ParsePageParams reads "page" and "page_size" from the query string.
//
// Validation rules:
//   - page: defaults to 1, values below 1 become 1
//   - page_size: defaults to DefaultPageSize, clamped to [MinPageSize, MaxPageSize]
//   - Non-numeric values fall back to the defaults instead of failing
//
// Example:
//
//	// GET /api/v1/scholarships?page=3&page_size=500
//	params := utils.ParsePageParams(r) // Page: 3, PageSize: MaxPageSize
//	page := utils.Paginate(scholarships, params)
func ParsePageParams(r *http.Request) PageParams {
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "page_size", DefaultPageSize)

	if page < 1 {
		page = 1
	}
	if pageSize < MinPageSize {
		pageSize = MinPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return PageParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}
}

// CalculateMeta derives navigation metadata for totalItems.
func (p PageParams) CalculateMeta(totalItems int64) PageMeta {
	totalPages := int((totalItems + int64(p.PageSize) - 1) / int64(p.PageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	meta := PageMeta{
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		HasPrevious: p.Page > 1,
		HasNext:     p.Page < totalPages,
	}
	if meta.HasPrevious {
		prev := p.Page - 1
		meta.PreviousPage = &prev
	}
	if meta.HasNext {
		next := p.Page + 1
		meta.NextPage = &next
	}
	return meta
}

// NewPaginatedResponse pairs data with metadata computed for totalItems.
func NewPaginatedResponse(data interface{}, params PageParams, totalItems int64) PaginatedResponse {
	return PaginatedResponse{
		Data:       data,
		Pagination: params.CalculateMeta(totalItems),
	}
}

// Paginate slices an already loaded, already ordered list down to the
// requested page. Out of range pages yield an empty, non-nil slice.
func Paginate[T any](items []T, p PageParams) PaginatedResponse {
	total := int64(len(items))
	start := p.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + p.Limit
	if end > len(items) {
		end = len(items)
	}

	page := make([]T, 0, end-start)
	page = append(page, items[start:end]...)
	return NewPaginatedResponse(page, p, total)
}

func parseIntParam(r *http.Request, key string, defaultValue int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return defaultValue
	}
	return value
}
