// Package validate checks task fields against the static machine catalog.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/me/shopfloor/internal/config"
	"github.com/me/shopfloor/pkg/model"
)

// ParseSpeed accepts a JSON number or a numeric string and returns a
// whole speed value. Anything else is a validation error.
func ParseSpeed(raw any) (int, error) {
	return ParseWhole("speed", raw)
}

// ParseWhole parses a non-negative whole number for the named field from
// a decoded JSON value: json.Number, float64, int or a numeric string.
func ParseWhole(field string, raw any) (int, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return 0, fieldError(field, field+" is required")
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return checkWhole(field, float64(v))
	case string:
		s = strings.TrimSpace(v)
	default:
		return 0, fieldError(field, fmt.Sprintf("%s must be numeric, got %T", field, raw))
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fieldError(field, fmt.Sprintf("%s must be numeric, got %q", field, s))
	}
	return checkWhole(field, f)
}

func checkWhole(field string, f float64) (int, error) {
	if f != math.Trunc(f) {
		return 0, fieldError(field, field+" must be a whole number")
	}
	if f < 0 {
		return 0, fieldError(field, field+" must not be negative")
	}
	if f > math.MaxInt32 {
		return 0, fieldError(field, field+" is too large")
	}
	return int(f), nil
}

func fieldError(field, msg string) error {
	return model.NewValidationError("invalid "+field, model.FieldError{Field: field, Message: msg})
}

func speedError(msg string) error {
	return fieldError("speed", msg)
}

// CatalogValidator validates tasks against a machine catalog.
type CatalogValidator struct {
	catalog *config.Catalog
}

// NewCatalogValidator creates a validator for the given catalog.
func NewCatalogValidator(c *config.Catalog) *CatalogValidator {
	return &CatalogValidator{catalog: c}
}

// Catalog returns the underlying catalog.
func (v *CatalogValidator) Catalog() *config.Catalog {
	return v.catalog
}

// CheckTask verifies the machine exists, offers the material, and that the
// speed lies inside the material's range for the machine's tool type.
// Materials the catalog does not list carry no speed range.
func (v *CatalogValidator) CheckTask(machine, material string, speed int) error {
	m, ok := v.catalog.Machine(machine)
	if !ok {
		return model.NewValidationError("invalid task",
			model.FieldError{Field: "machine", Message: fmt.Sprintf("unknown machine %q", machine)})
	}
	if strings.TrimSpace(material) == "" {
		return model.NewValidationError("invalid task",
			model.FieldError{Field: "material", Message: "material is required"})
	}
	if !m.Offers(material) {
		return model.NewValidationError("invalid task",
			model.FieldError{Field: "material", Message: fmt.Sprintf("machine %q does not take %q", machine, material)})
	}
	if speed < 0 {
		return speedError("speed must not be negative")
	}
	mat, ok := v.catalog.Material(material)
	if !ok {
		return nil
	}
	lo, hi, ok := mat.SpeedRange(m.ToolType())
	if !ok {
		return nil
	}
	if speed < lo || speed > hi {
		return speedError(fmt.Sprintf("speed %d outside range %d-%d for %s", speed, lo, hi, m.ToolType()))
	}
	return nil
}

// ExpectedSeconds returns the configured job duration of a machine.
func (v *CatalogValidator) ExpectedSeconds(machine string) (int, bool) {
	m, ok := v.catalog.Machine(machine)
	if !ok {
		return 0, false
	}
	return m.ExpectedTime, true
}
