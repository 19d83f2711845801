package pagination

// PageSize is the fixed number of rows every list endpoint returns per page.
const PageSize = 20

// Params holds page pagination inputs from controllers or services.
type Params struct {
	Page int
}

// Page describes the slice of a result set returned to clients.
type Page struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	HasMore    bool  `json:"has_more"`
}

// NormalizePage clamps the requested page number to a minimum of 1.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Offset converts a page number into a row offset for the fixed page size.
func Offset(page int) int {
	return (NormalizePage(page) - 1) * PageSize
}

// Build assembles the page metadata for a result set of totalCount rows.
func Build(page int, totalCount int64) Page {
	p := NormalizePage(page)
	return Page{
		Page:       p,
		PageSize:   PageSize,
		TotalCount: totalCount,
		HasMore:    int64(p*PageSize) < totalCount,
	}
}
