package output

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	common "github.com/RyanBlaney/latency-benchmark-common/output"
)

// Supported output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
	FormatYAML  = "yaml"
)

// NewFormatter returns the formatter for a format name
func NewFormatter(format string) (common.Formatter, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return &common.JSONFormatter{}, nil
	case FormatYAML, "yml":
		return &common.YAMLFormatter{}, nil
	case FormatCSV:
		return &common.CSVFormatter{}, nil
	case FormatTable, "":
		return &common.TableFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json, csv or yaml)", format)
	}
}

// Render formats data. Non-finite floats are replaced with zero and the
// format retried when the encoder rejects them.
func Render(format string, data any) ([]byte, error) {
	formatter, err := NewFormatter(format)
	if err != nil {
		return nil, err
	}

	out, err := formatter.Format(data, true)
	if err != nil && strings.Contains(err.Error(), "unsupported value") {
		out, err = formatter.Format(Sanitize(data), true)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to format output data: %w", err)
	}
	return out, nil
}

// Sanitize recursively replaces infinite and NaN values with zero. Structs are
// converted to maps keyed by their json tag.
func Sanitize(data any) any {
	switch v := data.(type) {
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0.0
		}
		return v
	case map[string]any:
		result := make(map[string]any, len(v))
		for k, val := range v {
			result[k] = Sanitize(val)
		}
		return result
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = Sanitize(val)
		}
		return result
	case []float64:
		result := make([]float64, len(v))
		for i, val := range v {
			if !math.IsInf(val, 0) && !math.IsNaN(val) {
				result[i] = val
			}
		}
		return result
	default:
		return sanitizeWithReflection(data)
	}
}

func sanitizeWithReflection(data any) any {
	if data == nil {
		return nil
	}

	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Struct:
		result := make(map[string]any)
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := val.Field(i)
			if !field.CanInterface() {
				continue
			}
			name := typ.Field(i).Name
			if tag := typ.Field(i).Tag.Get("json"); tag != "" {
				if tag == "-" {
					continue
				}
				if parts := strings.Split(tag, ","); parts[0] != "" {
					name = parts[0]
				}
			}
			result[name] = Sanitize(field.Interface())
		}
		return result
	case reflect.Slice:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			result[i] = Sanitize(val.Index(i).Interface())
		}
		return result
	case reflect.Map:
		result := make(map[string]any)
		for _, key := range val.MapKeys() {
			result[fmt.Sprintf("%v", key.Interface())] = Sanitize(val.MapIndex(key).Interface())
		}
		return result
	case reflect.Float64, reflect.Float32:
		f := val.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0.0
		}
		return f
	default:
		return val.Interface()
	}
}
