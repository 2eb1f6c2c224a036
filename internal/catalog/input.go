package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

// productInput carries both create and partial update payloads; nil fields are left alone.
type productInput struct {
	Name          *string          `json:"name"`
	Price         *decimal.Decimal `json:"price"`
	Stock         *decimal.Decimal `json:"stock"`
	Unit          *string          `json:"unit"`
	IsWeightBased *bool            `json:"is_weight_based"`
	ImageURL      *string          `json:"image_url"`
	Description   *string          `json:"description"`
	Weight        *decimal.Decimal `json:"weight"`
	CutType       *string          `json:"cut_type"`
	PricePerUnit  *decimal.Decimal `json:"price_per_unit"`
	Origin        *string          `json:"origin"`
}

func (in productInput) apply(p *domain.Product) {
	setString(&p.Name, in.Name)
	setDecimal(&p.Price, in.Price)
	setDecimal(&p.Stock, in.Stock)
	setString(&p.Unit, in.Unit)
	if in.IsWeightBased != nil {
		p.IsWeightBased = *in.IsWeightBased
	}
	setString(&p.ImageURL, in.ImageURL)
	setString(&p.Description, in.Description)
	setDecimal(&p.Weight, in.Weight)
	setString(&p.CutType, in.CutType)
	setDecimal(&p.PricePerUnit, in.PricePerUnit)
	setString(&p.Origin, in.Origin)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setDecimal(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

// validateProduct checks field limits after an input has been applied.
func validateProduct(p domain.Product) error {
	var problems []string

	if p.Name == "" {
		problems = append(problems, "name is required")
	}
	problems = appendTooLong(problems, "name", p.Name, 100)
	problems = appendTooLong(problems, "unit", p.Unit, 50)
	problems = appendTooLong(problems, "image_url", p.ImageURL, 500)
	problems = appendTooLong(problems, "description", p.Description, 2000)
	problems = appendTooLong(problems, "cut_type", p.CutType, 100)
	problems = appendTooLong(problems, "origin", p.Origin, 100)

	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"price", p.Price},
		{"stock", p.Stock},
		{"weight", p.Weight},
		{"price_per_unit", p.PricePerUnit},
	} {
		if f.value.IsNegative() {
			problems = append(problems, f.name+" must be greater than or equal to 0")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(problems, "; "))
	}
	return nil
}

func appendTooLong(problems []string, field, value string, max int) []string {
	if utf8.RuneCountInString(value) > max {
		return append(problems, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return problems
}
