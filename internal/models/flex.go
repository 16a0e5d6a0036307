package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Records come back from the spreadsheet with loosely typed cells. The Flex
// types coerce them while decoding; domain structs expose plain Go types.

// FlexStrings decodes an array, a string holding a JSON array, or a single
// non-empty string. Anything else becomes an empty list.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(b []byte) error {
	*f = StringList(b)
	return nil
}

// MarshalJSON always emits an array, never null.
func (f FlexStrings) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(f))
}

// StringList applies the FlexStrings rules to raw JSON. It is idempotent: the
// output encoded as an array decodes to itself.
func StringList(raw []byte) []string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []string{}
	}
	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return []string{}
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := scalarString(item); ok {
				out = append(out, s)
			}
		}
		return out
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return []string{}
		}
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "[") {
			var nested []json.RawMessage
			if json.Unmarshal([]byte(s), &nested) == nil {
				return StringList([]byte(s))
			}
		}
		if s == "" {
			return []string{}
		}
		return []string{s}
	default:
		return []string{}
	}
}

func scalarString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// FlexList decodes an array of objects, or a string holding one. Elements
// that fail to decode are dropped.
type FlexList[T any] []T

func (f *FlexList[T]) UnmarshalJSON(b []byte) error {
	*f = decodeList[T](b)
	return nil
}

func (f FlexList[T]) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]T(f))
}

func decodeList[T any](raw []byte) []T {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return []T{}
		}
		trimmed = bytes.TrimSpace([]byte(s))
	}
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []T{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return []T{}
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// FlexFloat accepts numbers and numeric strings; anything else is 0.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = FlexFloat(Float(b))
	return nil
}

// Float applies the FlexFloat rules to raw JSON.
func Float(raw []byte) float64 {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	var text string
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0
		}
		text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	} else {
		text = string(trimmed)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FlexInt is FlexFloat truncated toward zero.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt(Float(b))
	return nil
}

// FlexInts decodes a list of loosely typed integers.
type FlexInts []int

func (f *FlexInts) UnmarshalJSON(b []byte) error {
	items := decodeList[FlexInt](b)
	out := make([]int, len(items))
	for i, v := range items {
		out[i] = int(v)
	}
	*f = out
	return nil
}

// FlexBool accepts booleans, "TRUE"/"true"/"1" and non-zero numbers.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	*f = FlexBool(Bool(b))
	return nil
}

// Bool applies the FlexBool rules to raw JSON.
func Bool(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch trimmed[0] {
	case 't', 'f':
		return string(trimmed) == "true"
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			return true
		}
		return false
	case 'n':
		return false
	default:
		return Float(trimmed) != 0
	}
}

// FlexString accepts strings and numbers, rendering numbers without exponent.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if s, ok := scalarString(b); ok {
		*f = FlexString(s)
		return nil
	}
	if string(bytes.TrimSpace(b)) == "null" {
		*f = ""
		return nil
	}
	return fmt.Errorf("expected string, got %s", b)
}
