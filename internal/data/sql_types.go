package data

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const pqUniqueViolationCode = "23505"

// JSONMap is a JSONB column decoded into a map.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalling json map: %w", err)
	}
	return b, nil
}

func (m *JSONMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", src)
	}

	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshalling json map: %w", err)
	}
	*m = out
	return nil
}

var (
	_ driver.Valuer = JSONMap{}
	_ interface{ Scan(any) error } = (*JSONMap)(nil)
)

// uniqueViolation returns the name of the violated unique constraint, if err is one.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolationCode {
		return pqErr.Constraint, true
	}
	return "", false
}

// mapConstraintError translates a unique violation into the sentinel registered for its constraint.
func mapConstraintError(err error, constraintErrMap map[string]error) error {
	if constraint, ok := uniqueViolation(err); ok {
		if mapped, found := constraintErrMap[constraint]; found {
			return mapped
		}
		return ErrRecordAlreadyExists
	}
	return nil
}
