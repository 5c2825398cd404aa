package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParseID parses a positive integer path parameter.
func ParseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// QueryInt reads a non-negative integer query parameter, returning def when it
// is absent or invalid and clamping to max when max > 0.
func QueryInt(c *gin.Context, key string, def, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		n = def
	}
	if max > 0 && n > max {
		n = max
	}
	return n
}
