package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"senfret/internal/apperr"
	"senfret/internal/store"
)

var errBadPagination = apperr.Invalid("Paramètres de pagination invalides")

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := int64(20)

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, errBadPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, errBadPagination
		}
		limit = l
	}

	page, limit = store.Page(page, limit)
	return page, limit, nil
}

func pagination(page, limit, total int64) gin.H {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return gin.H{"page": page, "limit": limit, "total": total, "pages": pages}
}

// parseBoolQuery reads an optional boolean filter; absent or empty yields nil.
func parseBoolQuery(c *gin.Context, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := parseBoolValue(raw)
	if err != nil {
		return nil, apperr.Invalid("Paramètre " + name + " invalide")
	}
	return &v, nil
}
