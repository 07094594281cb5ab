package filters

import (
	"fmt"
	"html/template"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

// Resolve replaces every {{ a.b.c }} placeholder in text with the value at
// that dotted path in vars. Unknown paths become the empty string.
func Resolve(text any, vars map[string]any) string {
	s := toString(text)
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(m string) string {
		path := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := Lookup(vars, path)
		if !ok {
			return ""
		}
		return format(v)
	})
}

// Lookup walks a dotted path through maps, slices and structs.
func Lookup(root any, path string) (any, bool) {
	cur := root
	for _, key := range strings.Split(path, ".") {
		next, ok := step(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

func step(cur any, key string) (any, bool) {
	switch c := cur.(type) {
	case nil:
		return nil, false
	case map[string]any:
		v, ok := c[key]
		return v, ok
	case map[string]string:
		v, ok := c[key]
		return v, ok
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	case []string:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(c) {
			return nil, false
		}
		return c[i], true
	}

	rv := reflect.ValueOf(cur)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	// Match exported fields case-insensitively so "site.title" finds Title.
	f := rv.FieldByNameFunc(func(name string) bool { return strings.EqualFold(name, key) })
	if !f.IsValid() || !f.CanInterface() {
		return nil, false
	}
	return f.Interface(), true
}

func format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case template.HTML:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprint(v)
	}
}
