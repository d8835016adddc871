package models

import (
	"time"

	"github.com/google/uuid"
)

// NivelAcesso is the access level of a user inside their empresa.
type NivelAcesso string

const (
	NivelAdmin     NivelAcesso = "admin"
	NivelGerente   NivelAcesso = "gerente"
	NivelAtendente NivelAcesso = "attendant"
	NivelComum     NivelAcesso = "comum"
)

// Valid reports whether n is a known access level.
func (n NivelAcesso) Valid() bool {
	switch n {
	case NivelAdmin, NivelGerente, NivelAtendente, NivelComum:
		return true
	}
	return false
}

// User represents a platform user.
type User struct {
	ID          uuid.UUID   `json:"id"`
	EmpresaID   uuid.UUID   `json:"empresa_id"`
	Email       string      `json:"email"`
	Password    string      `json:"-"`
	Nome        string      `json:"nome"`
	NivelAcesso NivelAcesso `json:"nivel_acesso"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID          uuid.UUID   `json:"id"`
	EmpresaID   uuid.UUID   `json:"empresa_id"`
	Email       string      `json:"email"`
	Nome        string      `json:"nome"`
	NivelAcesso NivelAcesso `json:"nivel_acesso"`
	CreatedAt   time.Time   `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:          u.ID,
		EmpresaID:   u.EmpresaID,
		Email:       u.Email,
		Nome:        u.Nome,
		NivelAcesso: u.NivelAcesso,
		CreatedAt:   u.CreatedAt,
	}
}
