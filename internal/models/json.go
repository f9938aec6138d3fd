package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// scanJSON раскладывает JSONB колонку в dst. NULL оставляет dst нетронутым.
func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("models: unsupported JSON source %T", src)
	}
}

// valueJSON отдаёт JSON строкой: []byte lib/pq передал бы как bytea.
func valueJSON(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// ReminderLog хранит время последнего напоминания по ключу "месяц-год".
type ReminderLog map[string]time.Time

func (l ReminderLog) Value() (driver.Value, error) {
	if l == nil {
		return "{}", nil
	}
	return valueJSON(map[string]time.Time(l))
}

func (l *ReminderLog) Scan(src any) error {
	m := make(map[string]time.Time)
	if err := scanJSON(src, &m); err != nil {
		return err
	}
	*l = m
	return nil
}

// ReminderKey - ключ периода в журнале напоминаний.
func ReminderKey(month, year int) string {
	return fmt.Sprintf("%d-%d", month, year)
}
