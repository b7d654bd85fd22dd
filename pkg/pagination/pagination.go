package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1

	// MaxAuditLimit caps audit trail pages; exports read larger pages than the rule list.
	MaxAuditLimit = 500
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads page/limit with the default cap.
func Parse(c *gin.Context) Params {
	return ParseWithMax(c, MaxLimit)
}

// ParseWithMax reads page/limit from the query. Malformed or non-positive values fall back to
// the defaults; a limit above max is clamped to max.
func ParseWithMax(c *gin.Context, max int) Params {
	if max < MinLimit {
		max = MaxLimit
	}
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > max {
		limit = max
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// TotalPages is the number of pages needed to list total rows at p.Limit per page.
func (p Params) TotalPages(total int64) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}
