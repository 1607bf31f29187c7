package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Field map keys. The draft field map is a loosely-typed JSON blob, but the
// set of keys is closed: the draft store rejects anything outside this list.
const (
	FieldTypeID          = "type_id"
	FieldDescription     = "description"
	FieldReference       = "reference"
	FieldLatitude        = "latitude"
	FieldLongitude       = "longitude"
	FieldResolvedAddress = "resolved_address"
	FieldOrigin          = "origin"
	FieldEvidences       = "evidences"
	FieldSignatureID     = "signature_attachment_id"
)

// AllowedFieldKeys enumerates every key a draft field map may carry.
var AllowedFieldKeys = map[string]bool{
	FieldTypeID:          true,
	FieldDescription:     true,
	FieldReference:       true,
	FieldLatitude:        true,
	FieldLongitude:       true,
	FieldResolvedAddress: true,
	FieldOrigin:          true,
	FieldEvidences:       true,
	FieldSignatureID:     true,
}

// FieldMap is the draft's mutable field blob, stored as a JSON column.
type FieldMap map[string]any

// Value implements driver.Valuer so GORM can persist the map as JSON.
func (f FieldMap) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *FieldMap) Scan(src any) error {
	if src == nil {
		*f = FieldMap{}
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("fieldmap: cannot scan %T", src)
	}
	if len(b) == 0 {
		*f = FieldMap{}
		return nil
	}
	return json.Unmarshal(b, f)
}

// Clone returns a shallow copy, so callers can merge without aliasing the
// draft's live map.
func (f FieldMap) Clone() FieldMap {
	out := make(FieldMap, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// String returns the string value under key, or "" when absent or not a string.
func (f FieldMap) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Float returns the numeric value under key. JSON decoding yields float64,
// but values set in-process may still be ints.
func (f FieldMap) Float(key string) (float64, bool) {
	switch v := f[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	}
	return 0, false
}

// TypeID returns the resolved complaint type id, if present.
func (f FieldMap) TypeID() (uint, bool) {
	n, ok := f.Float(FieldTypeID)
	if !ok || n <= 0 {
		return 0, false
	}
	return uint(n), true
}

// MissingFields lists the mandatory fields not yet present:
// type, description, latitude, longitude.
func (f FieldMap) MissingFields() []string {
	var missing []string
	if _, ok := f.TypeID(); !ok {
		missing = append(missing, FieldTypeID)
	}
	if f.String(FieldDescription) == "" {
		missing = append(missing, FieldDescription)
	}
	if _, ok := f.Float(FieldLatitude); !ok {
		missing = append(missing, FieldLatitude)
	}
	if _, ok := f.Float(FieldLongitude); !ok {
		missing = append(missing, FieldLongitude)
	}
	return missing
}

// Complete reports whether every mandatory field is present.
func (f FieldMap) Complete() bool {
	return len(f.MissingFields()) == 0
}

// ValidateKeys rejects any key outside the closed enumeration.
func ValidateKeys(updates FieldMap) error {
	for k := range updates {
		if !AllowedFieldKeys[k] {
			return errors.New("unknown draft field: " + k)
		}
	}
	return nil
}
