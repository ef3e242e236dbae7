package leads

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"

	"amocrm-leads/internal/amocrm"
)

type fieldKind uint8

const (
	kindNull fieldKind = iota
	kindString
	kindNumber
	kindBool
)

// FieldValue is a scalar custom field value: string, number, bool or null.
// Numbers keep their JSON text so IDs and phone-like numbers render unchanged.
type FieldValue struct {
	kind fieldKind
	str  string
	num  json.Number
	b    bool
}

func NullValue() FieldValue {
	return FieldValue{}
}

func StringValue(s string) FieldValue {
	return FieldValue{kind: kindString, str: s}
}

func NumberValue(n json.Number) FieldValue {
	return FieldValue{kind: kindNumber, num: n}
}

func BoolValue(b bool) FieldValue {
	return FieldValue{kind: kindBool, b: b}
}

// ParseFieldValue converts a raw API value. Objects and arrays are kept as
// their compact JSON text.
func ParseFieldValue(raw json.RawMessage) FieldValue {
	if len(bytes.TrimSpace(raw)) == 0 {
		return NullValue()
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return StringValue(string(raw))
	}

	switch t := v.(type) {
	case nil:
		return NullValue()
	case string:
		return StringValue(t)
	case json.Number:
		return NumberValue(t)
	case bool:
		return BoolValue(t)
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return StringValue(string(raw))
		}
		return StringValue(buf.String())
	}
}

func (v FieldValue) IsNull() bool {
	return v.kind == kindNull
}

// String returns the value as display text; null renders as ""
func (v FieldValue) String() string {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return v.num.String()
	case kindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindString:
		return json.Marshal(v.str)
	case kindNumber:
		return []byte(v.num), nil
	case kindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	*v = ParseFieldValue(data)
	return nil
}

// Contact is a cached contact record. It serializes flat:
// {"name": ..., "<FIELD_CODE>": value, ...}
type Contact struct {
	Name   string
	Fields map[string]FieldValue
}

// ContactFromAPI flattens custom fields keyed by field code, falling back to
// the field name for fields without a code. Only the first value of a field
// is kept and fields without values are skipped.
func ContactFromAPI(c amocrm.Contact) Contact {
	contact := Contact{
		Name:   c.Name,
		Fields: make(map[string]FieldValue, len(c.CustomFieldsValues)),
	}

	for _, field := range c.CustomFieldsValues {
		if len(field.Values) == 0 {
			continue
		}

		key := field.FieldCode
		if key == "" {
			key = field.FieldName
		}
		if key == "" {
			key = strconv.Itoa(field.FieldID)
		}

		contact.Fields[key] = ParseFieldValue(field.Values[0].Value)
	}

	return contact
}

// MarshalJSON writes name first, then fields in key order.
// A field coded "name" replaces the contact name.
func (c Contact) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		if k != "name" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var name interface{} = c.Name
	if v, ok := c.Fields["name"]; ok {
		name = v
	}

	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	if err := writeJSON(&buf, name); err != nil {
		return nil, err
	}

	for _, k := range keys {
		buf.WriteByte(',')
		if err := writeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, c.Fields[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Name = ""
	c.Fields = make(map[string]FieldValue, len(raw))

	for k, v := range raw {
		if k == "name" {
			// a non-string name came from a field coded "name" and must render unchanged
			value := ParseFieldValue(v)
			c.Name = value.String()
			if value.kind != kindString {
				c.Fields["name"] = value
			}
			continue
		}
		c.Fields[k] = ParseFieldValue(v)
	}

	return nil
}

func writeJSON(buf *bytes.Buffer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// User is a cached responsible user
type User struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Status is a pipeline stage label
type Status struct {
	Title string `json:"title"`
	Color string `json:"color"`
}

// Lead is one row of the report.
//
// Key is the position of the lead in the fetched batch, not a stable
// identifier. StatusID holds exactly one element, nil when the status is
// unknown. ResponsibleUserID carries the user's display name. A contact that
// could not be found even after a reload is a nil entry.
type Lead struct {
	Key               int        `json:"key"`
	Name              string     `json:"name"`
	StatusID          []*Status  `json:"status_id"`
	ResponsibleUserID string     `json:"responsible_user_id"`
	CreatedAt         string     `json:"created_at"`
	Price             string     `json:"price"`
	Contacts          []*Contact `json:"contacts"`
}
