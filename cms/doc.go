package cms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Doc is one document as returned by the API. Field access never fails:
// missing or null fields read as the zero value.
type Doc map[string]any

// ID returns the document id as a string, whether the API sent a number or a string.
func (d Doc) ID() string {
	return d.String("id")
}

// String returns a field rendered as text. Numbers keep their integer form,
// nested objects are rendered as JSON.
func (d Doc) String(field string) string {
	v, ok := d[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

// Lower returns a field lowercased, for case-insensitive matching.
func (d Doc) Lower(field string) string {
	return strings.ToLower(d.String(field))
}

// Int returns a numeric field, or 0 when it is missing or not a number.
func (d Doc) Int(field string) int64 {
	switch t := d[field].(type) {
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// Object returns a nested relation expanded with depth > 0, or nil.
func (d Doc) Object(field string) Doc {
	if m, ok := d[field].(map[string]any); ok {
		return Doc(m)
	}
	return nil
}
