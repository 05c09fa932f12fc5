package alert

import (
	"strings"
	"unicode"
)

// FieldNameTransform maps a rule's field name to a candidate key in a
// report's field bag.
type FieldNameTransform func(name string) string

// DefaultFieldNameTransforms tries the name as written, then snake_case,
// then PascalCase.
var DefaultFieldNameTransforms = []FieldNameTransform{
	Identity,
	SnakeCase,
	PascalCase,
}

func Identity(name string) string { return name }

// SnakeCase lowercases name and replaces every run of whitespace with a
// single "_", including runs at either end. "Sea Temperature" becomes
// "sea_temperature" and " speed" becomes "_speed".
func SnakeCase(name string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// PascalCase capitalizes each snake_case word and joins them.
// "sea temperature" becomes "SeaTemperature".
func PascalCase(name string) string {
	words := strings.Split(SnakeCase(name), "_")
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// ExtractField probes fields with each transform in order and returns the
// first hit together with the key that matched.
func ExtractField(fields map[string]interface{}, name string, transforms []FieldNameTransform) (value interface{}, key string, ok bool) {
	for _, t := range transforms {
		k := t(name)
		if v, found := fields[k]; found {
			return v, k, true
		}
	}
	return nil, "", false
}
