package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/voicecheck/voicecheck/internal/constants"
)

// Query parameter names shared by every paginated listing.
const (
	QueryParamPage  = "page"
	QueryParamLimit = "limit"
)

// PaginationParams is a validated page/limit pair with its row offset.
type PaginationParams struct {
	Page   int
	Limit  int
	Offset int
}

// GetPaginationParams reads page and limit from the query string, falling
// back to defaults and clamping limit to the allowed range.
func GetPaginationParams(c *gin.Context) PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery(QueryParamPage, "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery(QueryParamLimit, strconv.Itoa(constants.DefaultPageSize)))

	if page < 1 {
		page = 1
	}
	if limit < constants.MinPageSize || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// TotalPages computes the page count for a result set.
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
