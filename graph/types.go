package graph

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"github.com/heartmarshall/gqlcrud/model"
)

// jsonScalar passes structured values through unmodified. Used for fields
// of kind json.
var jsonScalar = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "An arbitrary JSON value.",
	Serialize:   func(value any) any { return value },
	ParseValue:  func(value any) any { return value },
	ParseLiteral: func(valueAST ast.Value) any {
		return parseJSONLiteral(valueAST)
	},
})

func parseJSONLiteral(v ast.Value) any {
	switch v := v.(type) {
	case *ast.ObjectValue:
		out := make(map[string]any, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name.Value] = parseJSONLiteral(f.Value)
		}
		return out
	case *ast.ListValue:
		out := make([]any, len(v.Values))
		for i, item := range v.Values {
			out[i] = parseJSONLiteral(item)
		}
		return out
	default:
		return v.GetValue()
	}
}

// mutationErrorType mirrors the payload error entries: the offending input
// field (null for non-field errors) and a human-readable message.
var mutationErrorType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "MutationError",
	Description: "An error that happened in a mutation.",
	Fields: graphql.Fields{
		"field": &graphql.Field{
			Type:        graphql.String,
			Description: "The field that caused the error, or null if it isn't associated with any particular field.",
		},
		"message": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.String),
			Description: "The error message.",
		},
	},
})

// scalarType maps a field kind to its GraphQL output scalar.
func scalarType(f model.Field) graphql.Output {
	switch f.Kind {
	case model.KindID:
		return graphql.ID
	case model.KindBoolean:
		return graphql.Boolean
	case model.KindInteger:
		return graphql.Int
	case model.KindFloat, model.KindDecimal:
		return graphql.Float
	case model.KindDate, model.KindDateTime, model.KindTime:
		return graphql.DateTime
	case model.KindJSON:
		return jsonScalar
	default:
		// string-ish kinds: string, text, email, slug, uuid, ip, url
		return graphql.String
	}
}

// objectType builds the object shell of a model with its scalar fields.
// Relation fields are attached in a second pass once every shell exists.
func (b *Builder) objectType(rm *model.Registered) *graphql.Object {
	fields := graphql.Fields{}

	for _, f := range rm.Fields {
		if f.IsRelation() && f.Name != "id" {
			continue
		}
		fields[f.Name] = b.scalarField(rm, f)
	}

	return graphql.NewObject(graphql.ObjectConfig{
		Name:   rm.Name(),
		Fields: fields,
	})
}

func (b *Builder) scalarField(rm *model.Registered, f model.Field) *graphql.Field {
	if f.Name == "id" {
		return &graphql.Field{
			Type:        graphql.NewNonNull(graphql.ID),
			Description: "The global ID of the object.",
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return EncodeGID(rm.Name(), rm.ID(p.Source)), nil
			},
		}
	}

	typ := scalarType(f)
	var out graphql.Output = typ
	if !f.Optional && f.Name != "id" {
		out = graphql.NewNonNull(typ)
	}

	field := f // capture
	return &graphql.Field{
		Type:        out,
		Description: f.HelpText,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			v := rm.Value(p.Source, field)
			if field.Kind == model.KindUUID {
				if id, ok := v.(uuid.UUID); ok {
					return id.String(), nil
				}
			}
			return v, nil
		},
	}
}

// addRelationFields attaches FK and M2M fields to the object shell.
func (b *Builder) addRelationFields(rm *model.Registered) {
	obj := b.objects[rm.Name()]

	for _, f := range rm.Fields {
		if !f.IsRelation() || f.Name == "id" {
			continue
		}

		related := b.objects[f.OfType]
		relatedRm, _ := b.reg.Get(f.OfType)
		field := f

		if f.IsM2M() {
			obj.AddFieldConfig(f.Name, &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(related))),
				Description: f.HelpText,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return b.resolveM2M(p.Context, rm, relatedRm, field, rm.ID(p.Source))
				},
			})
			continue
		}

		var out graphql.Output = related
		if !f.Optional {
			out = graphql.NewNonNull(related)
		}
		obj.AddFieldConfig(f.Name, &graphql.Field{
			Type:        out,
			Description: f.HelpText,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				v := rm.Value(p.Source, field)
				id, ok := v.(uuid.UUID)
				if !ok || id == uuid.Nil {
					return nil, nil
				}
				return b.resolveRelated(p.Context, relatedRm, id)
			},
		})
	}
}

// payloadType builds the mutation payload of a model:
// { <returnField>: <Type>, errors: [MutationError!]! }.
func (b *Builder) payloadType(rm *model.Registered) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: rm.Name() + "Payload",
		Fields: graphql.Fields{
			rm.ReturnFieldName(): &graphql.Field{
				Type:        b.objects[rm.Name()],
				Description: "The mutated object.",
			},
			"errors": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(mutationErrorType))),
				Description: "List of errors that occurred while executing the mutation.",
			},
		},
	})
}

// inputType derives the input object of one mutation class.
func (b *Builder) inputType(rm *model.Registered, op model.Op) *graphql.InputObject {
	var prefix string
	switch op {
	case model.OpCreate:
		prefix = "Create"
	case model.OpUpdate:
		prefix = "Update"
	case model.OpDelete:
		prefix = "Delete"
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for _, f := range rm.InputFields(op) {
		fields[f.Name] = &graphql.InputObjectFieldConfig{
			Type:        inputFieldType(f),
			Description: f.HelpText,
		}
	}

	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   fmt.Sprintf("%s%sInput", prefix, rm.Name()),
		Fields: fields,
	})
}

// inputFieldType maps a field to its GraphQL input type. Relations become
// ID / [ID!]; everything else uses the output scalar of the kind.
func inputFieldType(f model.Field) graphql.Input {
	var typ graphql.Input
	switch {
	case f.Multiple:
		typ = graphql.NewList(graphql.NewNonNull(graphql.ID))
	case f.IsRelation() || f.Name == "id":
		typ = graphql.ID
	default:
		typ = scalarType(f)
	}

	if f.Required {
		typ = graphql.NewNonNull(typ)
	}
	return typ
}
