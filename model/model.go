// Package model holds the persisted resource schemas: their JSON shape,
// defaults, validation rules and the registration data used to synthesise
// CRUD operations for them.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrValidation marks input that fails schema or cross-field checks.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an unknown identifier.
	ErrNotFound = errors.New("not found")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs the tag rules of v and folds any failures into a single
// ErrValidation.
func checkStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, describeFieldError(fe))
		}
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrValidation, err)
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, comparisonWords[fe.Tag()], fe.Param())
	}
	return fmt.Sprintf("%s failed %q check", field, fe.Tag())
}

var comparisonWords = map[string]string{
	"gt":  "greater than",
	"gte": "at least",
	"lt":  "less than",
	"lte": "at most",
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Identity carries the store-assigned identifier of a persisted resource. It
// is never serialised with the resource body.
type Identity struct {
	id string
}

// ID returns the identifier, empty before the resource is persisted.
func (i *Identity) ID() string { return i.id }

// SetID attaches a store-assigned identifier.
func (i *Identity) SetID(id string) { i.id = id }

// Resource is implemented by every top-level schema.
type Resource interface {
	ID() string
	SetID(id string)
	// Validate runs tag and cross-field checks. Failures wrap ErrValidation.
	Validate() error
}

// Verb is an HTTP method a schema supports.
type Verb string

const (
	VerbPost   Verb = "POST"
	VerbGet    Verb = "GET"
	VerbPut    Verb = "PUT"
	VerbDelete Verb = "DELETE"
)

// AllVerbs lists the full CRUD set.
var AllVerbs = []Verb{VerbPost, VerbGet, VerbPut, VerbDelete}

// Schema is the registration record of a resource type: its stable name, the
// verbs it supports and its response factories.
type Schema[T Resource] struct {
	// Name is the lowercase singular resource name. It also names the store
	// collection.
	Name string
	// Plural is the path segment of the resource.
	Plural  string
	Methods []Verb
	// New returns an instance populated with defaults.
	New func() T
}

// Supports reports whether v is among the declared methods.
func (s Schema[T]) Supports(v Verb) bool {
	for _, m := range s.Methods {
		if m == v {
			return true
		}
	}
	return false
}

// IDKey is the response key carrying the identifier, e.g. "motor_id".
func (s Schema[T]) IDKey() string { return s.Name + "_id" }

func (s Schema[T]) title() string {
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

// Decode parses a request or document body into a default-populated
// instance. It does not validate.
func (s Schema[T]) Decode(data []byte) (T, error) {
	v := s.New()
	if err := json.Unmarshal(data, v); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %s body: %v", ErrValidation, s.Name, err)
	}
	return v, nil
}

// Created is the response to a successful POST.
func (s Schema[T]) Created(id string) map[string]any {
	return map[string]any{
		s.IDKey(): id,
		"message": s.title() + " successfully created",
	}
}

// Retrieved is the response to a successful GET: the resource view with its
// identifier attached.
func (s Schema[T]) Retrieved(v T) (map[string]any, error) {
	view, err := View(v)
	if err != nil {
		return nil, err
	}
	view[s.IDKey()] = v.ID()
	return map[string]any{
		"message": s.title() + " successfully retrieved",
		s.Name:    view,
	}, nil
}

// View renders v as a plain attribute mapping.
func View(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// The registered resource schemas.
var (
	EnvironmentSchema = Schema[*Environment]{Name: "environment", Plural: "environments", Methods: AllVerbs, New: NewEnvironment}
	MotorSchema       = Schema[*Motor]{Name: "motor", Plural: "motors", Methods: AllVerbs, New: NewMotor}
	RocketSchema      = Schema[*Rocket]{Name: "rocket", Plural: "rockets", Methods: AllVerbs, New: NewRocket}
	FlightSchema      = Schema[*Flight]{Name: "flight", Plural: "flights", Methods: AllVerbs, New: NewFlight}
)

func ptr[T any](v T) *T { return &v }
