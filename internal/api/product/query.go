package product

import (
	"fmt"
	"strings"
	"time"

	"auctionhouse/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// dateLayouts 是查询参数接受的日期格式。
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseQuery(c *gin.Context) (service.ProductQuery, error) {
	q := service.ProductQuery{
		Search: strings.TrimSpace(c.Query("search")),
		Status: strings.TrimSpace(c.Query("status")),
		SortBy: strings.TrimSpace(c.Query("sortBy")),
	}
	var err error
	if q.MinPrice, err = parsePrice(c, "minPrice"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = parsePrice(c, "maxPrice"); err != nil {
		return q, err
	}
	if q.StartDateAfter, err = parseDate(c, "startDateAfter"); err != nil {
		return q, err
	}
	if q.EndDateBefore, err = parseDate(c, "endDateBefore"); err != nil {
		return q, err
	}
	return q, nil
}

func parsePrice(c *gin.Context, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%s must not be negative", key)
	}
	return &d, nil
}

func parseDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be an ISO 8601 date", key)
}
