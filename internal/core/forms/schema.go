// Package forms validates submitted form values against declarative schemas.
//
// A Schema lists fields with go-playground/validator tags and optional
// cross-field rules. Validate is pure: the same schema and values always give
// the same Result.
package forms

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is safe for concurrent use and caches parsed tags.
var validate = validator.New()

// Field describes one input.
type Field struct {
	Name  string
	Label string
	// Rules is a validator tag string such as "required,email". Empty means
	// any string is accepted.
	Rules string
	// Messages overrides the default message per failing tag.
	Messages map[string]string
}

// CrossRule compares two fields after both passed their own rules. A
// violation is attached to Field, never to Other.
type CrossRule struct {
	Field   string
	Other   string
	Rule    string // validator cross-field tag, e.g. "eqcsfield"
	Message string
}

// Schema is the declarative description of one form.
type Schema struct {
	Name   string
	Fields []Field
	Cross  []CrossRule
}

// Values maps field names to submitted strings.
type Values map[string]string

// Result holds at most one message per field. Valid is true iff Errors is empty.
type Result struct {
	Errors map[string]string `json:"errors"`
	Valid  bool              `json:"valid"`
}

// FieldNames returns the schema's fields in declaration order.
func (s Schema) FieldNames() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Collect reads every schema field through get, e.g. echo.Context.FormValue.
func (s Schema) Collect(get func(string) string) Values {
	v := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		v[f.Name] = get(f.Name)
	}
	return v
}

// Validate runs every field rule independently, then the cross-field rules
// whose fields are both clean.
func Validate(schema Schema, values Values) Result {
	errs := make(map[string]string)

	for _, f := range schema.Fields {
		if msg, ok := checkField(f, values[f.Name]); !ok {
			errs[f.Name] = msg
		}
	}

	for _, cr := range schema.Cross {
		if _, bad := errs[cr.Field]; bad {
			continue
		}
		if _, bad := errs[cr.Other]; bad {
			continue
		}
		if err := validate.VarWithValue(values[cr.Field], values[cr.Other], cr.Rule); err != nil {
			errs[cr.Field] = cr.Message
		}
	}

	return Result{Errors: errs, Valid: len(errs) == 0}
}

func checkField(f Field, value string) (string, bool) {
	if f.Rules == "" {
		return "", true
	}
	err := validate.Var(value, f.Rules)
	if err == nil {
		return "", true
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fmt.Sprintf("%s is invalid", f.label()), false
	}
	fe := ve[0]
	if msg, ok := f.Messages[fe.Tag()]; ok {
		return msg, false
	}
	return fieldError(f.label(), fe), false
}

func (f Field) label() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(label string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return label + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s failed validation (%s)", label, fe.Tag())
	}
}
