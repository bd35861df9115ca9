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
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse extracts and validates page/limit from query parameters.
// per_page is accepted as an alias of limit.
func Parse(c *gin.Context) Params {
	return ParseValues(c.Query("page"), firstNonEmpty(c.Query("limit"), c.Query("per_page")), DefaultLimit)
}

// ParseValues validates raw page/limit strings. Empty or invalid values
// fall back to DefaultPage and def.
func ParseValues(pageStr, limitStr string, def int) Params {
	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < MinLimit {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
