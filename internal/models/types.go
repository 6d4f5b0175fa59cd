package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList is a JSON-encoded list of catalog ids, used for
// Appointment.ServiceIDs (ordered) and Appointment.AddOnIDs (unordered
// set). The teacher's original source stored add-on lists as raw
// JSON-stringified arrays read back with dynamic field access; here the
// encoding is the same on the wire but the Go side is a typed,
// Scanner/Valuer-backed slice instead of ad-hoc string parsing.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

func (s *StringList) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("models.StringList: unsupported scan type %T", value)
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, s)
}
