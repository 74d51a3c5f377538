package store

import (
	"errors"
	"strings"
	"time"

	"auctionhouse/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrInvalidSort = errors.New("invalid sort field")

// sortColumns maps the public (camelCase) sort keys to columns.
var sortColumns = map[string]string{
	"name":         "name",
	"initialPrice": "initial_price",
	"currentPrice": "current_price",
	"status":       "status",
	"startDate":    "start_date",
	"endDate":      "end_date",
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
}

// SortSpec orders a product listing.
type SortSpec struct {
	Field string // public key, e.g. "currentPrice"
	Desc  bool
}

// DefaultSort is newest first.
var DefaultSort = SortSpec{Field: "createdAt", Desc: true}

// ParseSort reads "field:dir". Any dir other than exactly "desc" sorts ascending.
func ParseSort(raw string) (SortSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSort, nil
	}
	field, dir, _ := strings.Cut(raw, ":")
	if _, ok := sortColumns[field]; !ok {
		return SortSpec{}, ErrInvalidSort
	}
	return SortSpec{Field: field, Desc: dir == "desc"}, nil
}

// ProductFilter holds the optional listing predicates. Set predicates are ANDed.
type ProductFilter struct {
	Search         string
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	Status         model.ProductStatus
	StartDateAfter *time.Time
	EndDateBefore  *time.Time
	Sort           SortSpec
}

func (f ProductFilter) sort() SortSpec {
	if _, ok := sortColumns[f.Sort.Field]; !ok {
		return DefaultSort
	}
	return f.Sort
}

// Apply adds the predicates and ordering to a products query.
func (f ProductFilter) Apply(tx *gorm.DB) *gorm.DB {
	if f.Search != "" {
		like := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		tx = tx.Where(clause.Or(
			clause.Expr{SQL: "LOWER(name) LIKE ?", Vars: []interface{}{like}},
			clause.Expr{SQL: "LOWER(description) LIKE ?", Vars: []interface{}{like}},
		))
	}
	if f.MinPrice != nil {
		tx = tx.Where(clause.Gte{Column: "current_price", Value: *f.MinPrice})
	}
	if f.MaxPrice != nil {
		tx = tx.Where(clause.Lte{Column: "current_price", Value: *f.MaxPrice})
	}
	if f.Status != "" {
		tx = tx.Where(clause.Eq{Column: "status", Value: f.Status})
	}
	if f.StartDateAfter != nil {
		tx = tx.Where(clause.Gte{Column: "start_date", Value: *f.StartDateAfter})
	}
	if f.EndDateBefore != nil {
		tx = tx.Where(clause.Lte{Column: "end_date", Value: *f.EndDateBefore})
	}

	s := f.sort()
	return tx.Order(clause.OrderByColumn{
		Column: clause.Column{Name: sortColumns[s.Field]},
		Desc:   s.Desc,
	})
}

// Match evaluates the predicates against a single product.
func (f ProductFilter) Match(p *model.Product) bool {
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if f.MinPrice != nil && p.CurrentPrice.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.CurrentPrice.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.StartDateAfter != nil && p.StartDate.Before(*f.StartDateAfter) {
		return false
	}
	if f.EndDateBefore != nil && p.EndDate.After(*f.EndDateBefore) {
		return false
	}
	return true
}

// Less orders two products by the sort spec.
func (f ProductFilter) Less(a, b *model.Product) bool {
	s := f.sort()
	c := compareField(s.Field, a, b)
	if s.Desc {
		return c > 0
	}
	return c < 0
}

func compareField(field string, a, b *model.Product) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "initialPrice":
		return a.InitialPrice.Cmp(b.InitialPrice)
	case "currentPrice":
		return a.CurrentPrice.Cmp(b.CurrentPrice)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "startDate":
		return a.StartDate.Compare(b.StartDate)
	case "endDate":
		return a.EndDate.Compare(b.EndDate)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
