package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestGetPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		page  int
		limit int
	}{
		{"", 1, 20},
		{"page=3&limit=10", 3, 10},
		{"page=-1&limit=0", 1, 20},
		{"limit=1000", 1, 20},
	}

	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/?"+tc.query, nil)

		params := GetPaginationParams(c)
		require.Equal(t, tc.page, params.Page, tc.query)
		require.Equal(t, tc.limit, params.Limit, tc.query)
		require.Equal(t, (tc.page-1)*tc.limit, params.Offset, tc.query)
	}
}

func TestTotalPages(t *testing.T) {
	require.Equal(t, 0, TotalPages(0, 20))
	require.Equal(t, 1, TotalPages(20, 20))
	require.Equal(t, 2, TotalPages(21, 20))
	require.Equal(t, 0, TotalPages(5, 0))
}
