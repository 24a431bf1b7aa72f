package graph

import (
	"encoding/json"
	"strconv"
)

// Value is a parameter value as authored: a number or a name.
type Value struct {
	num    float64
	text   string
	isText bool
}

// Number wraps a numeric parameter value.
func Number(v float64) Value { return Value{num: v} }

// Text wraps a named parameter value such as a filter type.
func Text(s string) Value { return Value{text: s, isText: true} }

// ValueOf converts a decoded JSON scalar into a Value.
func ValueOf(v any) (Value, bool) {
	if s, ok := v.(string); ok {
		return Text(s), true
	}

	f, ok := toFloat(v)
	if !ok {
		return Value{}, false
	}

	return Number(f), true
}

// IsText reports whether the value was given as a name.
func (v Value) IsText() bool { return v.isText }

// Float returns the numeric value. Names that parse as numbers are accepted.
func (v Value) Float() (float64, bool) {
	if !v.isText {
		return v.num, true
	}

	return toFloat(v.text)
}

func (v Value) String() string {
	if v.isText {
		return v.text
	}

	return strconv.FormatFloat(v.num, 'g', -1, 64)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isText {
		return json.Marshal(v.text)
	}

	return json.Marshal(v.num)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parsed, ok := ValueOf(raw)
	if !ok {
		return &json.UnsupportedValueError{Str: string(data)}
	}

	*v = parsed

	return nil
}
