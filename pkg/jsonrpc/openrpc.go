package jsonrpc

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstack/ras-go/pkg/auth"
)

// Document is an OpenRPC 1.3.2 document, with every named request/
// response struct flattened into Components.Schemas and referenced by
// $ref rather than inlined at each call site.
type Document struct {
	OpenRPC    string          `json:"openrpc"`
	Info       Info            `json:"info"`
	Methods    []MethodSpec    `json:"methods"`
	Components *ComponentsSpec `json:"components,omitempty"`
}

// Info is the OpenRPC info object.
type Info struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// MethodSpec is one method entry in the document.
type MethodSpec struct {
	Name            string              `json:"name"`
	Params          []ContentDescriptor `json:"params"`
	Result          ContentDescriptor   `json:"result"`
	Errors          []ErrorObject       `json:"errors,omitempty"`
	XAuthentication *XAuthentication    `json:"x-authentication,omitempty"`
	XPermissions    []string            `json:"x-permissions,omitempty"`
	Examples        []MethodExample     `json:"examples,omitempty"`
}

// XAuthentication annotates a method that requires a validated bearer
// credential.
type XAuthentication struct {
	Required bool   `json:"required"`
	Type     string `json:"type"`
}

// MethodExample pairs an example request with the response it would
// produce.
type MethodExample struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Params      []ExampleValue `json:"params"`
	Result      ExampleValue   `json:"result"`
}

// ExampleValue names one example param or result value.
type ExampleValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// ContentDescriptor names and types one param or result.
type ContentDescriptor struct {
	Name   string  `json:"name"`
	Schema *Schema `json:"schema"`
}

// ErrorObject is an OpenRPC error object, mirroring the stable wire
// error code table (§6).
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ComponentsSpec holds the flattened, reusable schema set.
type ComponentsSpec struct {
	Schemas map[string]*Schema `json:"schemas,omitempty"`
}

// Schema is a minimal JSON Schema node: enough to describe the Go
// types crossing the wire without pulling in a general-purpose JSON
// Schema library.
type Schema struct {
	Ref        string             `json:"$ref,omitempty"`
	Type       string             `json:"type,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Items      *Schema            `json:"items,omitempty"`
	Example    any                `json:"example,omitempty"`
}

// standardErrors is the stable JSON-RPC error code table (§6), emitted
// on every method since any of them can fail this way.
func standardErrors() []ErrorObject {
	return []ErrorObject{
		{Code: -32700, Message: "Parse error"},
		{Code: -32600, Message: "Invalid Request"},
		{Code: -32601, Message: "Method not found"},
		{Code: -32602, Message: "Invalid params"},
		{Code: -32603, Message: "Internal error"},
		{Code: -32001, Message: "Authentication required"},
		{Code: -32002, Message: "Insufficient permissions"},
		{Code: -32003, Message: "Token expired"},
	}
}

// BuildDocument renders an OpenRPC 1.3.2 document for the dispatcher's
// registered methods.
func BuildDocument(title, version string, methods map[string]Method) *Document {
	components := map[string]*Schema{}

	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)

	specs := make([]MethodSpec, 0, len(names))
	for _, name := range names {
		m := methods[name]
		paramsSchema := flattenSchema(reflect.TypeOf(m.RequestType), components)
		resultSchema := flattenSchema(reflect.TypeOf(m.ResponseType), components)

		spec := MethodSpec{
			Name:   name,
			Params: []ContentDescriptor{{Name: "params", Schema: paramsSchema}},
			Result: ContentDescriptor{Name: "result", Schema: resultSchema},
			Errors: standardErrors(),
			Examples: []MethodExample{{
				Name:        name + "_example",
				Description: "Example call to " + name,
				Params:      []ExampleValue{{Name: "params", Value: synthesizeExample(paramsSchema, components)}},
				Result:      ExampleValue{Name: "result", Value: synthesizeExample(resultSchema, components)},
			}},
		}

		if rule := m.Rule; rule.RequiresAuth() {
			spec.XAuthentication = &XAuthentication{Required: true, Type: "bearer"}
			if perms := flattenPermissions(rule.Groups()); len(perms) > 0 {
				spec.XPermissions = perms
			}
		}

		specs = append(specs, spec)
	}

	return &Document{
		OpenRPC: "1.3.2",
		Info:    Info{Title: title, Version: version},
		Methods: specs,
		Components: &ComponentsSpec{
			Schemas: components,
		},
	}
}

// flattenSchema reflects t into a Schema, hoisting every named struct
// type into components (keyed by its Go type name) and returning a
// $ref in its place. Anonymous/unnamed types are inlined.
func flattenSchema(t reflect.Type, components map[string]*Schema) *Schema {
	if t == nil {
		return &Schema{Type: "object"}
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() == reflect.Struct && t.Name() != "" {
		if _, ok := components[t.Name()]; !ok {
			// Placeholder breaks recursion for self-referential types
			// before the real fields are walked below.
			components[t.Name()] = &Schema{Type: "object"}
			components[t.Name()] = structSchema(t, components)
		}
		return &Schema{Ref: "#/components/schemas/" + t.Name()}
	}

	return inlineSchema(t, components)
}

func inlineSchema(t reflect.Type, components map[string]*Schema) *Schema {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}
	case reflect.Bool:
		return &Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}
	case reflect.Slice, reflect.Array:
		return &Schema{Type: "array", Items: flattenSchema(t.Elem(), components)}
	case reflect.Map:
		return &Schema{Type: "object"}
	case reflect.Struct:
		return structSchema(t, components)
	default:
		return &Schema{}
	}
}

func structSchema(t reflect.Type, components map[string]*Schema) *Schema {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{}}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omit := jsonFieldName(field)
		if omit {
			continue
		}
		prop := flattenSchema(field.Type, components)
		if example, ok := field.Tag.Lookup("example"); ok {
			prop.Example = parseExampleTag(example, field.Type)
		}
		schema.Properties[name] = prop
	}
	return schema
}

// parseExampleTag interprets an `example:"..."` struct tag as the
// field's Go type, so a numeric/boolean field's literal example isn't
// emitted as a quoted string.
func parseExampleTag(raw string, t reflect.Type) any {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return v
		}
	case reflect.Float32, reflect.Float64:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return raw
}

// flattenPermissions reduces a rule's two-level "groups of permissions"
// shape to the single deduplicated list x-permissions documents; the
// OR-of-ANDs structure itself is an authorization-time concern, not a
// documentation one.
func flattenPermissions(groups auth.PermissionGroups) []string {
	seen := make(map[string]bool)
	flat := make([]string, 0, len(groups))
	for _, group := range groups {
		for _, perm := range group {
			if perm == "" || seen[perm] {
				continue
			}
			seen[perm] = true
			flat = append(flat, perm)
		}
	}
	return flat
}

// synthesizeExample produces an example value for schema: a literal
// example carried on the schema itself if one was declared, otherwise
// a type-directed synthetic value.
func synthesizeExample(schema *Schema, components map[string]*Schema) any {
	if schema == nil {
		return map[string]any{"example": "value"}
	}
	if schema.Example != nil {
		return schema.Example
	}
	if schema.Ref != "" {
		name := strings.TrimPrefix(schema.Ref, "#/components/schemas/")
		if ref, ok := components[name]; ok {
			return synthesizeExample(ref, components)
		}
	}

	switch schema.Type {
	case "string":
		return "example_string"
	case "integer", "number":
		return 42
	case "boolean":
		return true
	case "array":
		if schema.Items != nil {
			return []any{synthesizeExample(schema.Items, components)}
		}
		return []any{"example_item"}
	case "object":
		if len(schema.Properties) == 0 {
			return map[string]any{"example_key": "example_value"}
		}
		names := make([]string, 0, len(schema.Properties))
		for name := range schema.Properties {
			names = append(names, name)
		}
		sort.Strings(names)

		obj := make(map[string]any, len(names))
		for _, name := range names {
			obj[name] = synthesizeExample(schema.Properties[name], components)
		}
		return obj
	default:
		return map[string]any{"example": "value"}
	}
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
