package queryset

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchField is returned when there is no field or no relation with that name.
	ErrNoSuchField = errors.New("field does not exist")
	// ErrTypeMismatch is returned when an operand or an operation does not fit the kind of a field.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrNotNullable is returned when a nil value is inserted into a non-nullable field.
	ErrNotNullable = errors.New("field is not nullable")
	// ErrDuplicateID is returned when a record with the same primary key already exists.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrNoSuchCollection is returned when no schema is registered under that name.
	ErrNoSuchCollection = errors.New("collection does not exist")
	// ErrNoSuchRecord is returned by finishers that expect a record but the set is empty.
	ErrNoSuchRecord = errors.New("no such record")
)

// InvalidFieldError reports a field path that does not resolve on a schema.
type InvalidFieldError struct {
	Schema string
	Path   string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: %s.%s", ErrNoSuchField, e.Schema, e.Path)
}

func (e *InvalidFieldError) Unwrap() error { return ErrNoSuchField }

// TypeMismatchError reports an operand or operation that does not fit a field.
type TypeMismatchError struct {
	Path    string
	Kind    Kind
	Operand any
	Op      string
}

func (e *TypeMismatchError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s cannot be applied to %s field %q", ErrTypeMismatch, e.Op, e.Kind, e.Path)
	}
	return fmt.Sprintf("%s: %T is not a valid %s for field %q", ErrTypeMismatch, e.Operand, e.Kind, e.Path)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// errNoSchema is returned for a Set that was not read from a store, such as
// the zero Set returned next to an error.
var errNoSchema = fmt.Errorf("%w: set has no schema", ErrNoSuchCollection)

func invalidField(schema, path string) error {
	return &InvalidFieldError{Schema: schema, Path: path}
}
