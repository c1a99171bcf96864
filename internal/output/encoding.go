package output

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strings"
)

// DeterministicEncode produces byte-identical JSON output:
//   - stable key ordering (sorted alphabetically)
//   - floats rounded to max 6 decimal places
//   - nil and empty fields omitted entirely
func DeterministicEncode(v interface{}) ([]byte, error) {
	return encode(normalizeValue(v, nil))
}

// DeterministicEncodeIndented is DeterministicEncode with indentation, for
// human-facing JSON.
func DeterministicEncodeIndented(v interface{}, indent string) ([]byte, error) {
	return json.MarshalIndent(normalizeValue(v, nil), "", indent)
}

// CompactEncode is DeterministicEncode minus the verbose fields listed in
// CompactDropFields. It backs the --compact flag: the response keeps its
// shape and scores but sheds narrative detail and score breakdowns.
func CompactEncode(v interface{}) ([]byte, error) {
	return encode(normalizeValue(v, compactDrop))
}

// CompactDropFields are the keys removed everywhere in a response when
// encoding compactly.
var CompactDropFields = []string{
	"motivation",
	"alternatives",
	"followUp",
	"factors",
	"reasons",
	"corrections",
	"suggestedNextCalls",
	"drilldowns",
	"suggestedFixes",
}

var compactDrop = func() map[string]bool {
	m := make(map[string]bool, len(CompactDropFields))
	for _, f := range CompactDropFields {
		m[f] = true
	}
	return m
}()

func encode(normalized interface{}) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(normalized); err != nil {
		return nil, err
	}
	// Encode appends a newline; responses are newline-free.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// RoundFloat rounds a float to max 6 decimal places.
func RoundFloat(f float64) float64 {
	multiplier := math.Pow(10, 6)
	return math.Round(f*multiplier) / multiplier
}

// normalizeValue recursively normalizes a value for deterministic encoding.
// Keys present in drop are removed at every nesting level.
func normalizeValue(v interface{}, drop map[string]bool) interface{} {
	if v == nil {
		return nil
	}

	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		return normalizeMap(val, drop)
	case reflect.Slice, reflect.Array:
		return normalizeSlice(val, drop)
	case reflect.Struct:
		// time.Time and similar self-marshaling types must not be
		// flattened into their unexported fields.
		if _, ok := val.Interface().(json.Marshaler); ok {
			return normalizeMarshaler(val.Interface(), drop)
		}
		return normalizeStruct(val, drop)
	case reflect.Float32, reflect.Float64:
		return RoundFloat(val.Float())
	case reflect.Interface:
		if val.IsNil() {
			return nil
		}
		return normalizeValue(val.Interface(), drop)
	default:
		return v
	}
}

// normalizeMarshaler routes a self-marshaling value through its own JSON
// representation, then normalizes that.
func normalizeMarshaler(v interface{}, drop map[string]bool) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return normalizeValue(decoded, drop)
}

func normalizeMap(val reflect.Value, drop map[string]bool) map[string]interface{} {
	if val.IsNil() {
		return nil
	}

	result := make(map[string]interface{})
	iter := val.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		if drop[key] {
			continue
		}
		if value := normalizeValue(iter.Value().Interface(), drop); value != nil {
			result[key] = value
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func normalizeSlice(val reflect.Value, drop map[string]bool) interface{} {
	if val.Kind() == reflect.Slice && val.IsNil() {
		return nil
	}
	length := val.Len()
	if length == 0 {
		return nil
	}

	result := make([]interface{}, length)
	for i := 0; i < length; i++ {
		result[i] = normalizeValue(val.Index(i).Interface(), drop)
	}
	return result
}

func normalizeStruct(val reflect.Value, drop map[string]bool) map[string]interface{} {
	result := make(map[string]interface{})
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		tagName, omitEmpty := parseJSONTag(field.Tag.Get("json"))
		if tagName == "-" {
			continue
		}
		if tagName == "" {
			tagName = field.Name
		}
		if drop[tagName] {
			continue
		}

		normalized := normalizeValue(val.Field(i).Interface(), drop)
		if omitEmpty && isZeroValue(normalized) {
			continue
		}
		if normalized != nil {
			result[tagName] = normalized
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func parseJSONTag(tag string) (name string, omitEmpty bool) {
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

func isZeroValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case int, int8, int16, int32, int64:
		return val == 0
	case uint, uint8, uint16, uint32, uint64:
		return val == 0
	case float32, float64:
		return val == 0
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}
