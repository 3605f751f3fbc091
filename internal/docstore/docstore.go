package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

var (
	ErrNotFound           = errors.New("document not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrAlreadyExists      = errors.New("document already exists")
)

// TimeLayout is fixed-width UTC so stored timestamps order lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Store is the document-store capability the discharge workflow consumes.
type Store interface {
	Get(ctx context.Context, ref Ref) (*Document, error)
	QueryByField(ctx context.Context, collection, field string, equals any) ([]Document, error)
	// QueryOrderedLimit skips documents that do not carry orderBy.
	QueryOrderedLimit(ctx context.Context, collection, orderBy string, desc bool, limit int) ([]Document, error)
	// AtomicWrite applies every op or none of them.
	AtomicWrite(ctx context.Context, ops []WriteOp) error
	NewID() string
}

// Ref addresses one document. Collection may be nested, e.g. "patients/p1/admissionHistory".
type Ref struct {
	Collection string
	ID         string
}

func Doc(collection, id string) Ref { return Ref{Collection: collection, ID: id} }

func (r Ref) Path() string { return r.Collection + "/" + r.ID }

// Sub returns the path of a subcollection under this document.
func (r Ref) Sub(name string) string { return r.Path() + "/" + name }

type Fields map[string]any

type Document struct {
	Ref    Ref
	Fields Fields
}

type fieldTransform string

const (
	// ServerTimestamp is replaced by the store's commit time.
	ServerTimestamp fieldTransform = "serverTimestamp"
	// DeleteField removes the key on update.
	DeleteField fieldTransform = "deleteField"
)

type OpKind int

const (
	// OpSet replaces the whole document, creating it if missing.
	OpSet OpKind = iota
	// OpCreate fails with ErrAlreadyExists if the document exists.
	OpCreate
	// OpUpdate merges top-level fields into an existing document.
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	}
	return "unknown"
}

// Precondition is checked against the stored document before an update is applied.
type Precondition struct {
	Field  string
	Equals any
	Absent bool
}

func FieldEquals(field string, v any) Precondition { return Precondition{Field: field, Equals: v} }

func FieldAbsent(field string) Precondition { return Precondition{Field: field, Absent: true} }

type WriteOp struct {
	Kind          OpKind
	Ref           Ref
	Fields        Fields
	Preconditions []Precondition
}

func Set(ref Ref, fields Fields) WriteOp { return WriteOp{Kind: OpSet, Ref: ref, Fields: fields} }

func Create(ref Ref, fields Fields) WriteOp { return WriteOp{Kind: OpCreate, Ref: ref, Fields: fields} }

func Update(ref Ref, fields Fields, pre ...Precondition) WriteOp {
	return WriteOp{Kind: OpUpdate, Ref: ref, Fields: fields, Preconditions: pre}
}

func (op WriteOp) validate() error {
	if op.Ref.Collection == "" || op.Ref.ID == "" {
		return fmt.Errorf("invalid %s op: empty document ref", op.Kind)
	}
	if op.Kind != OpUpdate && len(op.Preconditions) > 0 {
		return fmt.Errorf("invalid %s op on %s: preconditions are only supported on update", op.Kind, op.Ref.Path())
	}
	return nil
}

func needsServerTime(ops []WriteOp) bool {
	for _, op := range ops {
		for _, v := range op.Fields {
			if v == ServerTimestamp {
				return true
			}
		}
	}
	return false
}

// normalize maps values to a comparable form: string kinds to string, numbers to float64, times to UTC.
func normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(TimeLayout)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// textOf renders v the way PostgreSQL's ->> operator renders the stored JSON value.
func textOf(v any) string {
	switch t := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// compareValues orders strings, numbers and times. Mixed types compare by their text form.
func compareValues(a, b any) int {
	na, nb := normalize(a), normalize(b)
	if fa, ok := na.(float64); ok {
		if fb, ok := nb.(float64); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	sa, sb := textOf(na), textOf(nb)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}
