package validator

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Required validates that a string is not blank.
func Required(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{
			Field:   field,
			Message: "field is required",
			Key:     "validation.required",
			Values:  map[string]any{"field": field},
		},
	}
}

// RequiredNum validates that a numeric value is not zero.
func RequiredNum[T Numeric](field string, value T) Rule {
	var zero T
	return Rule{
		Check: func() bool { return value != zero },
		Error: ValidationError{
			Field:   field,
			Message: "field is required",
			Key:     "validation.required",
			Values:  map[string]any{"field": field},
		},
	}
}

func MaxLen(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return len(value) <= max },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %d characters long", max),
			Key:     "validation.max_length",
			Values:  map[string]any{"field": field, "max": max},
		},
	}
}

// Min validates that value >= min.
func Min[T Numeric](field string, value, min T) Rule {
	return Rule{
		Check: func() bool { return value >= min },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %v", min),
			Key:     "validation.min",
			Values:  map[string]any{"field": field, "min": min},
		},
	}
}

// Max validates that value <= max.
func Max[T Numeric](field string, value, max T) Rule {
	return Rule{
		Check: func() bool { return value <= max },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %v", max),
			Key:     "validation.max",
			Values:  map[string]any{"field": field, "max": max},
		},
	}
}

func InList[T comparable](field string, value T, allowed []T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(allowed, value) },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be one of: %v", allowed),
			Key:     "validation.in_list",
			Values:  map[string]any{"field": field, "allowed_values": allowed},
		},
	}
}

// Len validates the number of elements in a slice.
func Len[T any](field string, value []T, exact int) Rule {
	return Rule{
		Check: func() bool { return len(value) == exact },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must contain exactly %d items", exact),
			Key:     "validation.exact_length",
			Values:  map[string]any{"field": field, "length": exact},
		},
	}
}

// ValidUUID validates that a non-empty string parses as a UUID.
// Empty values pass; combine with Required when the field is mandatory.
func ValidUUID(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if value == "" {
				return true
			}
			_, err := uuid.Parse(value)
			return err == nil
		},
		Error: ValidationError{
			Field:   field,
			Message: "must be a valid UUID",
			Key:     "validation.uuid",
			Values:  map[string]any{"field": field},
		},
	}
}

// RequiredDate validates that a date is set.
func RequiredDate(field string, value time.Time) Rule {
	return Rule{
		Check: func() bool { return !value.IsZero() },
		Error: ValidationError{
			Field:   field,
			Message: "field is required",
			Key:     "validation.required",
			Values:  map[string]any{"field": field},
		},
	}
}
