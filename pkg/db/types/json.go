package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBlob stores opaque provider payloads (shipment quotes, raw payment
// request/response bodies) without the core interpreting their shape.
type JSONBlob json.RawMessage

// Value implements driver.Valuer.
func (j JSONBlob) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("json blob: invalid payload")
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSONBlob) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		buf := make([]byte, len(v))
		copy(buf, v)
		*j = buf
	case string:
		*j = JSONBlob(v)
	default:
		return fmt.Errorf("json blob: unsupported source %T", value)
	}
	return nil
}

// MarshalJSON renders the stored payload as-is.
func (j JSONBlob) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON stores the raw payload without decoding it.
func (j *JSONBlob) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("json blob: nil receiver")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// Contains reports whether needle appears anywhere in the raw payload. Used by
// the payment bridge to match a provider callback token against stored
// responses without parsing provider internals.
func (j JSONBlob) Contains(needle string) bool {
	if len(j) == 0 || needle == "" {
		return false
	}
	return bytes.Contains(j, []byte(needle))
}
