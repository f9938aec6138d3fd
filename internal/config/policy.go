package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy - бизнес-параметры жизненного цикла аренды. Читаются из YAML файла,
// незаданные поля берутся из DefaultPolicy.
type Policy struct {
	// За сколько дней до срока начинаются ежедневные напоминания об аренде.
	PaymentReminderWindowDays int `yaml:"payment_reminder_window_days"`
	// То же для платежей по займам.
	EMIReminderWindowDays int `yaml:"emi_reminder_window_days"`
	// Пеня за просроченный платёж по займу, процент от платежа.
	EMIPenaltyPercent float64 `yaml:"emi_penalty_percent"`
	BadgeValidityDays int     `yaml:"badge_validity_days"`
	// Префикс человекочитаемого кода договора.
	ContractCodePrefix string `yaml:"contract_code_prefix"`
	OutboxMaxAttempts  int    `yaml:"outbox_max_attempts"`
	// Часовой пояс, в котором считаются сроки платежей и границы суток.
	Timezone string `yaml:"timezone"`
}

// DefaultPolicy - значения по умолчанию.
func DefaultPolicy() Policy {
	return Policy{
		PaymentReminderWindowDays: 5,
		EMIReminderWindowDays:     3,
		EMIPenaltyPercent:         2,
		BadgeValidityDays:         365,
		ContractCodePrefix:        "RLC",
		OutboxMaxAttempts:         10,
		Timezone:                  "UTC",
	}
}

// LoadPolicy читает политику из файла. Пустой путь даёт политику по умолчанию.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("config: не удалось прочитать файл политики %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, fmt.Errorf("config: некорректный файл политики %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate проверяет, что параметры имеют смысл.
func (p Policy) Validate() error {
	switch {
	case p.PaymentReminderWindowDays <= 0:
		return fmt.Errorf("config: payment_reminder_window_days должен быть больше нуля")
	case p.EMIReminderWindowDays <= 0:
		return fmt.Errorf("config: emi_reminder_window_days должен быть больше нуля")
	case p.EMIPenaltyPercent < 0:
		return fmt.Errorf("config: emi_penalty_percent не может быть отрицательным")
	case p.BadgeValidityDays <= 0:
		return fmt.Errorf("config: badge_validity_days должен быть больше нуля")
	case p.ContractCodePrefix == "":
		return fmt.Errorf("config: contract_code_prefix не может быть пустым")
	case p.OutboxMaxAttempts <= 0:
		return fmt.Errorf("config: outbox_max_attempts должен быть больше нуля")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return fmt.Errorf("config: неизвестный timezone %q: %w", p.Timezone, err)
	}
	return nil
}

// Location возвращает часовой пояс политики.
func (p Policy) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BadgeValidity - срок действия бейджа проверенного объекта.
func (p Policy) BadgeValidity() time.Duration {
	return time.Duration(p.BadgeValidityDays) * 24 * time.Hour
}
