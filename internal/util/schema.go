// Package util derives JSON schemas for tool arguments from Go structs.
package util

import (
	"reflect"
	"strings"
)

// CreateSchema derives an object schema from a struct value or pointer.
// Supported field tags:
//
//	json:"name,omitempty"  property name; omitempty or a pointer type makes it optional
//	description:"..."      property description
//	enum:"a|b|c"           allowed string values
//
// Slices get an "items" schema and nested structs are described recursively.
// Non-struct input yields an empty object schema.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return objectSchema(t)
}

func objectSchema(t reflect.Type) map[string]any {
	properties := map[string]any{}

	var required []string

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, optional, skip := jsonName(field)
		if skip {
			continue
		}

		prop := typeSchema(field.Type)

		if d := field.Tag.Get("description"); d != "" {
			prop["description"] = d
		}

		if e := field.Tag.Get("enum"); e != "" {
			prop["enum"] = strings.Split(e, "|")
		}

		properties[name] = prop

		if !optional && field.Type.Kind() != reflect.Pointer {
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func typeSchema(t reflect.Type) map[string]any {
	switch t.Kind() {
	case reflect.Pointer:
		return typeSchema(t.Elem())
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Struct:
		return objectSchema(t)
	case reflect.Map:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{"type": "string"}
	}
}

// jsonName resolves the property name from the json tag.
func jsonName(f reflect.StructField) (name string, optional, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}

	for _, o := range strings.Split(opts, ",") {
		if strings.TrimSpace(o) == "omitempty" {
			optional = true
		}
	}

	return name, optional, false
}
