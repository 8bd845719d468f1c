package model

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a field for input derivation and schema introspection.
// Clients use it to pick form widgets; the graph layer uses it to pick
// GraphQL scalar types and validation rules.
type Kind string

const (
	KindID       Kind = "id"
	KindString   Kind = "string"
	KindText     Kind = "text"
	KindBoolean  Kind = "boolean"
	KindInteger  Kind = "integer"
	KindDecimal  Kind = "decimal"
	KindFloat    Kind = "float"
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"
	KindTime     Kind = "time"
	KindEmail    Kind = "email"
	KindSlug     Kind = "slug"
	KindUUID     Kind = "uuid"
	KindIP       Kind = "ip"
	KindURL      Kind = "url"
	KindJSON     Kind = "json"
)

var kinds = map[string]Kind{
	"id":       KindID,
	"string":   KindString,
	"text":     KindText,
	"boolean":  KindBoolean,
	"integer":  KindInteger,
	"decimal":  KindDecimal,
	"float":    KindFloat,
	"date":     KindDate,
	"datetime": KindDateTime,
	"time":     KindTime,
	"email":    KindEmail,
	"slug":     KindSlug,
	"uuid":     KindUUID,
	"ip":       KindIP,
	"url":      KindURL,
	"json":     KindJSON,
}

// ParseKind converts a tag value into a Kind.
func ParseKind(s string) (Kind, error) {
	k, ok := kinds[s]
	if !ok {
		return "", fmt.Errorf("unknown field kind %q", s)
	}
	return k, nil
}

var (
	uuidType    = reflect.TypeOf(uuid.UUID{})
	timeType    = reflect.TypeOf(time.Time{})
	rawJSONType = reflect.TypeOf(map[string]any{})
)

// inferKind derives a Kind from a Go type when the tag does not name one.
// Pointers are unwrapped first; pointer-ness only affects required-ness.
func inferKind(t reflect.Type) (Kind, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch {
	case t == uuidType:
		return KindUUID, nil
	case t == timeType:
		return KindDateTime, nil
	case t == rawJSONType:
		return KindJSON, nil
	}

	switch t.Kind() {
	case reflect.String:
		return KindString, nil
	case reflect.Bool:
		return KindBoolean, nil
	case reflect.Int, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInteger, nil
	case reflect.Float32, reflect.Float64:
		return KindFloat, nil
	}

	return "", fmt.Errorf("cannot infer field kind for Go type %s", t)
}
