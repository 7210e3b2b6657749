package rest

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

var pathParamPattern = regexp.MustCompile(`\{([^}]+)\}`)

// BuildOpenAPI renders an OpenAPI 3.0.3 document for the given routes,
// referencing a single "bearerAuth" (HTTP bearer, JWT) security scheme
// on every route whose Rule requires a credential.
func BuildOpenAPI(title, version string, routes []Route) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   title,
			Version: version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			SecuritySchemes: openapi3.SecuritySchemes{
				"bearerAuth": &openapi3.SecuritySchemeRef{
					Value: &openapi3.SecurityScheme{
						Type:         "http",
						Scheme:       "bearer",
						BearerFormat: "JWT",
					},
				},
			},
		},
	}

	for _, route := range routes {
		op := buildOperation(route)
		item := doc.Paths.Find(route.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(route.Path, item)
		}
		setOperation(item, route.Verb, op)
	}

	return doc
}

func buildOperation(route Route) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: operationID(route),
		Responses:   openapi3.NewResponses(),
	}

	for _, name := range pathParamPattern.FindAllStringSubmatch(route.Path, -1) {
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     name[1],
				In:       "path",
				Required: true,
				Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		})
	}

	if hasBody(route.Verb) {
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(schemaRefFor(route.RequestType)),
			},
		}
	}

	op.Responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: stringPtr("successful response"),
			Content:     openapi3.NewContentWithJSONSchemaRef(schemaRefFor(route.ResponseType)),
		},
	})

	if route.Rule.RequiresAuth() {
		op.Security = &openapi3.SecurityRequirements{
			openapi3.SecurityRequirement{"bearerAuth": []string{}},
		}
		op.Responses.Set("401", &openapi3.ResponseRef{Value: &openapi3.Response{Description: stringPtr("authentication required")}})
		op.Responses.Set("403", &openapi3.ResponseRef{Value: &openapi3.Response{Description: stringPtr("insufficient permissions")}})
	}

	return op
}

func setOperation(item *openapi3.PathItem, verb string, op *openapi3.Operation) {
	switch verb {
	case "GET":
		item.Get = op
	case "POST":
		item.Post = op
	case "PUT":
		item.Put = op
	case "PATCH":
		item.Patch = op
	case "DELETE":
		item.Delete = op
	}
}

func operationID(route Route) string {
	id := strings.ToLower(route.Verb) + pathParamPattern.ReplaceAllString(route.Path, "")
	id = strings.ReplaceAll(id, "/", "_")
	return strings.Trim(id, "_")
}

func stringPtr(s string) *string { return &s }

// schemaRefFor reflects a Go value into an OpenAPI schema, following
// the hand-built Schema{Type,Properties} construction the rest of this
// document uses rather than a generic reflection library.
func schemaRefFor(v any) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: schemaForType(reflect.TypeOf(v))}
}

func schemaForType(t reflect.Type) *openapi3.Schema {
	if t == nil {
		return &openapi3.Schema{Type: &openapi3.Types{"object"}}
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return &openapi3.Schema{Type: &openapi3.Types{"string"}}
	case reflect.Bool:
		return &openapi3.Schema{Type: &openapi3.Types{"boolean"}}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.Schema{Type: &openapi3.Types{"integer"}}
	case reflect.Float32, reflect.Float64:
		return &openapi3.Schema{Type: &openapi3.Types{"number"}}
	case reflect.Slice, reflect.Array:
		return &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: &openapi3.SchemaRef{Value: schemaForType(t.Elem())},
		}
	case reflect.Map:
		return &openapi3.Schema{
			Type:                 &openapi3.Types{"object"},
			AdditionalProperties: openapi3.AdditionalProperties{Schema: &openapi3.SchemaRef{Value: schemaForType(t.Elem())}},
		}
	case reflect.Struct:
		return structSchema(t)
	default:
		return &openapi3.Schema{}
	}
}

func structSchema(t reflect.Type) *openapi3.Schema {
	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: map[string]*openapi3.SchemaRef{},
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omit := jsonFieldName(field)
		if omit {
			continue
		}
		schema.Properties[name] = &openapi3.SchemaRef{Value: schemaForType(field.Type)}
	}
	return schema
}

func jsonFieldName(field reflect.StructField) (name string, omit bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		return parts[0], false
	}
	return field.Name, false
}
