package warehouse

import (
	"errors"
	"fmt"
)

// Kind is melchi's error taxonomy (spec.md §7).
type Kind string

const (
	InvalidConfig Kind = "InvalidConfig"
	NotSupported  Kind = "NotSupported"
	Connection    Kind = "Connection"
	MissingObject Kind = "MissingObject"
	DataPlane     Kind = "DataPlane"
	Bookkeeping   Kind = "Bookkeeping"
)

// Error wraps a cause with the taxonomy kind, the warehouse kind, the
// operation being performed, and the fully-qualified table name when
// applicable, the way the teacher's DatabaseError attaches context to
// every backend failure.
type Error struct {
	ErrKind      Kind
	WarehouseKind string
	Operation    string
	Table        string
	Cause        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.ErrKind, e.Operation)
	if e.WarehouseKind != "" {
		msg = fmt.Sprintf("[%s/%s] %s", e.ErrKind, e.WarehouseKind, e.Operation)
	}
	if e.Table != "" {
		msg += " (table " + e.Table + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is against the taxonomy sentinels below.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidConfig:
		return e.ErrKind == InvalidConfig
	case ErrNotSupported:
		return e.ErrKind == NotSupported
	case ErrConnection:
		return e.ErrKind == Connection
	case ErrMissingObject:
		return e.ErrKind == MissingObject
	case ErrDataPlane:
		return e.ErrKind == DataPlane
	case ErrBookkeeping:
		return e.ErrKind == Bookkeeping
	}
	return errors.Is(e.Cause, target)
}

// Sentinel errors for each taxonomy kind, for use with errors.Is.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNotSupported  = errors.New("operation not supported by this backend")
	ErrConnection    = errors.New("warehouse connection failure")
	ErrMissingObject = errors.New("expected warehouse object not found; re-run setup")
	ErrDataPlane     = errors.New("data plane failure")
	ErrBookkeeping   = errors.New("bookkeeping write failure")
)

// NewConfigError builds an InvalidConfig error. Used by config parsing
// and table-descriptor validation, which have no warehouse/table
// context yet.
func NewConfigError(field, format string, args ...interface{}) *Error {
	return &Error{ErrKind: InvalidConfig, Operation: field, Cause: fmt.Errorf(format, args...)}
}

// Wrap builds a backend error of the given kind, attaching the
// warehouse kind, operation, and table.
func Wrap(kind Kind, warehouseKind, operation string, table TableDescriptor, cause error) error {
	if cause == nil {
		return nil
	}
	var existing *Error
	if errors.As(cause, &existing) {
		return cause
	}
	fqn := ""
	if table.Database != "" || table.Schema != "" || table.Table != "" {
		fqn = table.FullyQualifiedName()
	}
	return &Error{ErrKind: kind, WarehouseKind: warehouseKind, Operation: operation, Table: fqn, Cause: cause}
}

// NewUnsupported builds a NotSupported error for a backend asked to
// play a role it does not implement.
func NewUnsupported(warehouseKind, operation, reason string) *Error {
	return &Error{ErrKind: NotSupported, WarehouseKind: warehouseKind, Operation: operation, Cause: errors.New(reason)}
}

// NewMissingObject builds a MissingObject error directing the operator
// to re-run setup (spec.md §4.3 cleanup_source, §7).
func NewMissingObject(warehouseKind, operation string, table TableDescriptor, object string) *Error {
	return &Error{
		ErrKind:       MissingObject,
		WarehouseKind: warehouseKind,
		Operation:     operation,
		Table:         table.FullyQualifiedName(),
		Cause:         fmt.Errorf("%s not found; run `melchi setup` for this table before retrying", object),
	}
}

// IsNotSupported reports whether err is (or wraps) a NotSupported error.
func IsNotSupported(err error) bool { return errors.Is(err, ErrNotSupported) }

// IsMissingObject reports whether err is (or wraps) a MissingObject error.
func IsMissingObject(err error) bool { return errors.Is(err, ErrMissingObject) }
