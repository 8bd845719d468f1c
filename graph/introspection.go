package graph

import (
	"encoding/json"
	"strings"

	"github.com/graphql-go/graphql"

	"github.com/heartmarshall/gqlcrud/model"
)

// The input-schema introspection exposes the derived mutation input of each
// model as data, for clients that build forms dynamically.

type schemaChoice struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type schemaValidation struct {
	Required  bool `json:"required"`
	MinLength *int `json:"minLength"`
	MaxLength *int `json:"maxLength"`
}

type schemaField struct {
	Name         string           `json:"name"`
	Kind         string           `json:"kind"`
	OfType       *string          `json:"ofType"`
	Multiple     bool             `json:"multiple"`
	Choices      []schemaChoice   `json:"choices"`
	Hidden       bool             `json:"hidden"`
	Label        *string          `json:"label"`
	HelpText     *string          `json:"helpText"`
	DefaultValue *string          `json:"defaultValue"`
	Validation   schemaValidation `json:"validation"`
}

type inputSchema struct {
	ObjectType string        `json:"objectType"`
	Fields     []schemaField `json:"fields"`
}

var fieldKindEnum = func() *graphql.Enum {
	kinds := []model.Kind{
		model.KindID, model.KindString, model.KindText, model.KindBoolean,
		model.KindInteger, model.KindDecimal, model.KindFloat, model.KindDate,
		model.KindDateTime, model.KindTime, model.KindEmail, model.KindSlug,
		model.KindUUID, model.KindIP, model.KindURL, model.KindJSON,
	}
	values := graphql.EnumValueConfigMap{}
	for _, k := range kinds {
		values[strings.ToUpper(string(k))] = &graphql.EnumValueConfig{Value: string(k)}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:        "FieldKind",
		Description: "The semantic kind of an input field.",
		Values:      values,
	})
}()

var schemaChoiceType = graphql.NewObject(graphql.ObjectConfig{
	Name: "SchemaFieldChoice",
	Fields: graphql.Fields{
		"label": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"value": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var schemaValidationType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "SchemaFieldValidation",
	Description: "Validation metadata for the field.",
	Fields: graphql.Fields{
		"required":  &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"minLength": &graphql.Field{Type: graphql.Int, Description: "Min length for string kinds."},
		"maxLength": &graphql.Field{Type: graphql.Int, Description: "Max length for string kinds."},
	},
})

var schemaFieldType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "SchemaField",
	Description: "One input field of a mutation input object.",
	Fields: graphql.Fields{
		"name":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"kind":     &graphql.Field{Type: graphql.NewNonNull(fieldKindEnum)},
		"ofType":   &graphql.Field{Type: graphql.String, Description: "The related type name for ID kinds."},
		"multiple": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean), Description: "If this field expects an array of values."},
		"choices":  &graphql.Field{Type: graphql.NewList(graphql.NewNonNull(schemaChoiceType))},
		"hidden":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"label":    &graphql.Field{Type: graphql.String, Description: "The field's humanized name."},
		"helpText": &graphql.Field{Type: graphql.String},
		"defaultValue": &graphql.Field{
			Type:        graphql.String,
			Description: "Default value encoded as JSON. Parse it to get the value.",
		},
		"validation": &graphql.Field{Type: graphql.NewNonNull(schemaValidationType)},
	},
})

var inputSchemaType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Schema",
	Description: "The derived mutation input schema of one type.",
	Fields: graphql.Fields{
		"objectType": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"fields":     &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(schemaFieldType)))},
	},
})

// addIntrospection registers the inputSchema/inputSchemas queries.
func (b *Builder) addIntrospection(fields graphql.Fields) {
	fields["inputSchema"] = &graphql.Field{
		Type:        inputSchemaType,
		Description: "The input schema of one type, or null if the type is unknown.",
		Args: graphql.FieldConfigArgument{
			"objectType": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		},
		Resolve: func(p graphql.ResolveParams) (any, error) {
			name, _ := p.Args["objectType"].(string)
			rm, ok := b.reg.Get(name)
			if !ok {
				return nil, nil
			}
			return buildInputSchema(rm), nil
		},
	}

	fields["inputSchemas"] = &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(inputSchemaType))),
		Description: "The input schemas of all registered types.",
		Resolve: func(p graphql.ResolveParams) (any, error) {
			all := b.reg.All()
			out := make([]inputSchema, 0, len(all))
			for _, rm := range all {
				out = append(out, buildInputSchema(rm))
			}
			return out, nil
		},
	}
}

// buildInputSchema flattens a model's create input into introspection data.
// Create is used because it carries the full writable field set.
func buildInputSchema(rm *model.Registered) inputSchema {
	inFields := rm.InputFields(model.OpCreate)
	out := inputSchema{
		ObjectType: rm.Name(),
		Fields:     make([]schemaField, 0, len(inFields)),
	}
	for _, f := range inFields {
		out.Fields = append(out.Fields, buildSchemaField(f))
	}
	return out
}

func buildSchemaField(f model.Field) schemaField {
	sf := schemaField{
		Name:     f.Name,
		Kind:     string(f.Kind),
		Multiple: f.Multiple,
		Hidden:   f.Hidden,
		Validation: schemaValidation{
			Required:  f.Required,
			MinLength: optInt(f.MinLen),
			MaxLength: optInt(f.MaxLen),
		},
	}
	if f.OfType != "" {
		sf.OfType = optStr(f.OfType)
	}
	if f.Label != "" {
		sf.Label = optStr(f.Label)
	}
	if f.HelpText != "" {
		sf.HelpText = optStr(f.HelpText)
	}
	for _, c := range f.Choices {
		sf.Choices = append(sf.Choices, schemaChoice{Label: c.Label, Value: c.Value})
	}
	if f.Default != nil {
		if data, err := json.Marshal(f.Default); err == nil {
			sf.DefaultValue = optStr(string(data))
		}
	}
	return sf
}

func optInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func optStr(s string) *string {
	return &s
}
