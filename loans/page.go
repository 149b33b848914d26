package loans

const (
	defaultPageNumber = 1
	defaultPageLimit  = 20
	maxPageLimit      = 100
)

// Page is a pagination request for list queries.
type Page struct {
	Number int
	Limit  int
}

// Normalized returns a copy with defaults applied and the limit capped.
func (p Page) Normalized() Page {
	if p.Number < 1 {
		p.Number = defaultPageNumber
	}

	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}

	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}

	return p
}

// Offset returns the number of records to skip for this page.
func (p Page) Offset() int {
	normalized := p.Normalized()
	return (normalized.Number - 1) * normalized.Limit
}

// Pagination describes the position of a returned page within the full result set.
type Pagination struct {
	Total       int64 `json:"total"`
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// BuildPagination computes the pagination envelope for a page and a total count.
func BuildPagination(page Page, total int64) Pagination {
	normalized := page.Normalized()

	totalPages := int(total / int64(normalized.Limit))
	if total%int64(normalized.Limit) != 0 {
		totalPages++
	}

	return Pagination{
		Total:       total,
		Page:        normalized.Number,
		Limit:       normalized.Limit,
		TotalPages:  totalPages,
		HasNextPage: normalized.Number < totalPages,
		HasPrevPage: normalized.Number > 1 && total > 0,
	}
}
