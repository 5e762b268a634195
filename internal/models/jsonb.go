package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB is free-form provider metadata stored in a Postgres jsonb column
// (and as an embedded document in MongoDB).
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return fmt.Errorf("cannot scan %T into JSONB", src)
}
