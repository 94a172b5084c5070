package utils

import (
	"net/http"
	"strconv"
)

type QueryOptions struct {
	Page  int
	Limit int
}

func (q QueryOptions) Skip() int { return (q.Page - 1) * q.Limit }

// ParseQueryOptions reads page/limit, clamping limit to [1, 100].
func ParseQueryOptions(r *http.Request) QueryOptions {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return QueryOptions{Page: page, Limit: limit}
}
