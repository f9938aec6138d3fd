package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// User описывает участника сделки. Аутентификация живёт во внешнем сервисе,
// здесь хранится роль и счётчики активных договоров.
type User struct {
	ID                        uuid.UUID `db:"id" json:"id"`
	Email                     string    `db:"email" json:"email"`
	DisplayName               string    `db:"display_name" json:"display_name"`
	Phone                     *string   `db:"phone" json:"phone,omitempty"`
	Role                      string    `db:"role" json:"role"`
	ActiveContractsAsTenant   int       `db:"active_contracts_as_tenant" json:"active_contracts_as_tenant"`
	ActiveContractsAsLandlord int       `db:"active_contracts_as_landlord" json:"active_contracts_as_landlord"`
	CreatedAt                 time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                 time.Time `db:"updated_at" json:"updated_at"`
}

// Notification описывает событие, отправленное пользователю.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
