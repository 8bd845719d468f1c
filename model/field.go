package model

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/heartmarshall/gqlcrud/domain"
)

// Choice is one allowed value of an enumerated field.
type Choice struct {
	Value string
	Label string
}

// JoinSpec describes the join table backing a many-to-many field.
type JoinSpec struct {
	Table  string // join table name
	Local  string // column referencing this model's id
	Remote string // column referencing the related model's id
}

// Field is the derived metadata for one model field. It drives SQL column
// lists, GraphQL object and input types, validation, and the input-schema
// introspection query.
type Field struct {
	Name     string // GraphQL name, lower camel case
	Column   string // database column (empty for M2M fields)
	Index    int    // struct field index
	Kind     Kind
	Required bool
	Multiple bool   // true for M2M ID lists
	OfType   string // related model name for ID kinds
	Join     JoinSpec
	Optional bool // Go pointer field, stored as NULL when absent
	ReadOnly bool // never part of mutation input
	Hidden   bool
	Label    string
	HelpText string
	MinLen   int
	MaxLen   int
	Choices  []Choice
	Default  any
}

// IsRelation reports whether the field references another registered model.
func (f Field) IsRelation() bool { return f.OfType != "" }

// IsM2M reports whether the field is a many-to-many ID list.
func (f Field) IsM2M() bool { return f.Multiple && f.Join.Table != "" }

// timestampColumns are bookkeeping columns that never appear in mutation
// inputs regardless of tags.
var timestampColumns = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"archived_at": true,
}

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate checks a decoded input value against the field's rules. Relations
// are resolved before validation, so only scalar rules apply here. Returns
// nil when the value is acceptable.
func (f Field) Validate(v any) *domain.FieldError {
	if v == nil {
		if f.Required {
			return &domain.FieldError{Field: f.Name, Message: "this field is required"}
		}
		return nil
	}

	s, isString := v.(string)
	if isString {
		if f.MinLen > 0 && len(s) < f.MinLen {
			return &domain.FieldError{
				Field:   f.Name,
				Message: fmt.Sprintf("must be at least %d characters", f.MinLen),
			}
		}
		if f.MaxLen > 0 && len(s) > f.MaxLen {
			return &domain.FieldError{
				Field:   f.Name,
				Message: fmt.Sprintf("must be at most %d characters", f.MaxLen),
			}
		}
		if len(f.Choices) > 0 && !f.hasChoice(s) {
			return &domain.FieldError{
				Field:   f.Name,
				Message: fmt.Sprintf("%q is not a valid choice", s),
			}
		}

		switch f.Kind {
		case KindEmail:
			if _, err := mail.ParseAddress(s); err != nil {
				return &domain.FieldError{Field: f.Name, Message: "enter a valid email address"}
			}
		case KindURL:
			if u, err := url.Parse(s); err != nil || u.Scheme == "" || u.Host == "" {
				return &domain.FieldError{Field: f.Name, Message: "enter a valid URL"}
			}
		case KindIP:
			if net.ParseIP(s) == nil {
				return &domain.FieldError{Field: f.Name, Message: "enter a valid IP address"}
			}
		case KindSlug:
			if !slugRe.MatchString(s) {
				return &domain.FieldError{Field: f.Name, Message: "enter a valid slug"}
			}
		}
	}

	return nil
}

func (f Field) hasChoice(v string) bool {
	for _, c := range f.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// parseField builds a Field from one struct field and its tags.
// The gql tag grammar is `name[,option[=value]...]`; "-" skips the field.
func parseField(sf reflect.StructField, index int) (Field, bool, error) {
	tag := sf.Tag.Get("gql")
	if tag == "-" {
		return Field{}, false, nil
	}

	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = lowerCamel(sf.Name)
	}

	f := Field{
		Name:     name,
		Column:   sf.Tag.Get("db"),
		Index:    index,
		Optional: sf.Type.Kind() == reflect.Pointer,
	}
	if f.Column == "" {
		f.Column = snakeCase(sf.Name)
	}
	if f.Column == "-" {
		f.Column = ""
	}

	multiple := sf.Type.Kind() == reflect.Slice && sf.Type.Elem() == uuidType

	for _, opt := range parts[1:] {
		key, val, _ := strings.Cut(opt, "=")
		switch key {
		case "kind":
			k, err := ParseKind(val)
			if err != nil {
				return Field{}, false, fmt.Errorf("field %s: %w", sf.Name, err)
			}
			f.Kind = k
		case "required":
			f.Required = true
		case "readonly":
			f.ReadOnly = true
		case "hidden":
			f.Hidden = true
		case "label":
			f.Label = val
		case "help":
			f.HelpText = val
		case "of":
			f.OfType = val
		case "join":
			j := strings.Split(val, ":")
			if len(j) != 3 {
				return Field{}, false, fmt.Errorf("field %s: join must be table:local:remote", sf.Name)
			}
			f.Join = JoinSpec{Table: j[0], Local: j[1], Remote: j[2]}
		case "minlen":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Field{}, false, fmt.Errorf("field %s: bad minlen: %w", sf.Name, err)
			}
			f.MinLen = n
		case "maxlen":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Field{}, false, fmt.Errorf("field %s: bad maxlen: %w", sf.Name, err)
			}
			f.MaxLen = n
		case "choices":
			for _, c := range strings.Split(val, ";") {
				value, label, ok := strings.Cut(c, ":")
				if !ok {
					label = value
				}
				f.Choices = append(f.Choices, Choice{Value: value, Label: label})
			}
		case "default":
			f.Default = val
		case "":
			// trailing comma, ignore
		default:
			return Field{}, false, fmt.Errorf("field %s: unknown tag option %q", sf.Name, key)
		}
	}

	if multiple {
		f.Multiple = true
		f.Column = ""
		if f.Kind == "" {
			f.Kind = KindID
		}
		if f.OfType == "" {
			return Field{}, false, fmt.Errorf("field %s: M2M fields need of=<Type>", sf.Name)
		}
		if f.Join.Table == "" {
			return Field{}, false, fmt.Errorf("field %s: M2M fields need join=table:local:remote", sf.Name)
		}
	}

	if f.OfType != "" && f.Kind == "" {
		f.Kind = KindID
	}
	if f.Kind == "" {
		k, err := inferKind(sf.Type)
		if err != nil {
			return Field{}, false, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		f.Kind = k
	}

	if f.Name == "id" {
		f.Kind = KindID
		f.Hidden = true
		f.ReadOnly = false
	}
	if timestampColumns[f.Column] {
		f.ReadOnly = true
	}

	// Required mirrors the blank/default rule: a value must be supplied
	// unless the column is nullable, defaulted, or maintained by the server.
	if !f.Required && !f.Optional && !f.ReadOnly && f.Default == nil && f.Name != "id" && !f.Multiple {
		f.Required = true
	}
	if f.ReadOnly {
		f.Required = false
	}

	return f, true, nil
}

// lowerCamel converts an exported Go name to a GraphQL field name:
// "Title" → "title", "DueDate" → "dueDate", "ProjectID" → "projectId".
func lowerCamel(s string) string {
	if s == "" {
		return s
	}
	if s == "ID" {
		return "id"
	}
	if strings.HasSuffix(s, "ID") {
		s = s[:len(s)-2] + "Id"
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// snakeCase converts an exported Go name to a column name:
// "DueDate" → "due_date", "ProjectID" → "project_id".
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(rune(s[i-1])) || (i+1 < len(s) && !unicode.IsUpper(rune(s[i+1])))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
