package utils

import (
	"net/http"
	"strconv"
)

// Pagination defaults. The visitor log never holds more than 100 entries,
// so a single max-size page always covers it.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1
)

// PageParams holds validated pagination parameters from a request.
type PageParams struct {
	Page     int // 1-based page number
	PageSize int // Number of items per page
	Offset   int // 0-based index of the first item on the page
}

// PageMeta describes a page for the response body.
type PageMeta struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalPages  int  `json:"total_pages"`
	TotalItems  int  `json:"total_items"`
	HasPrevious bool `json:"has_previous"`
	HasNext     bool `json:"has_next"`
}

// PaginatedResponse wraps one page of data with its metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination PageMeta    `json:"pagination"`
}

// ParsePageParams reads ?page= and ?page_size= and clamps them to sane values.
//
// Example:
//
//	// GET /api/v1/monitor/visitors?page=2&page_size=10
//	params := utils.ParsePageParams(r) // Page 2, PageSize 10, Offset 10
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
	}
}

// CalculateMeta builds page metadata for a collection of totalItems.
func (p PageParams) CalculateMeta(totalItems int) PageMeta {
	totalPages := (totalItems + p.PageSize - 1) / p.PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	return PageMeta{
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		HasPrevious: p.Page > 1,
		HasNext:     p.Page < totalPages,
	}
}

// Paginate slices an in-memory collection. Pages past the end are empty.
func Paginate[T any](items []T, p PageParams) PaginatedResponse {
	start := min(p.Offset, len(items))
	end := min(start+p.PageSize, len(items))

	page := make([]T, end-start)
	copy(page, items[start:end])

	return PaginatedResponse{
		Data:       page,
		Pagination: p.CalculateMeta(len(items)),
	}
}

func parseIntParam(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
