package handler

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxAmount bounds admin supplied prices and discount amounts.
var maxAmount = decimal.NewFromInt(1_000_000_000)

// validationError converts validator output into a bad request naming the
// first offending field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return badRequest("invalid input")
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return badRequest("%s is required", field)
	case "numeric":
		return badRequest("%s must be a number", field)
	case "oneof":
		return badRequest("%s must be one of: %s", field, fe.Param())
	case "gte":
		return badRequest("%s must be at least %s", field, fe.Param())
	case "lte":
		return badRequest("%s must be at most %s", field, fe.Param())
	default:
		return badRequest("%s failed %s validation", field, fe.Tag())
	}
}
