package models

import (
	"time"

	"github.com/google/uuid"
)

// Empresa is the tenant (political office) that owns users, constituents and import runs.
type Empresa struct {
	ID        uuid.UUID `json:"id"`
	Nome      string    `json:"nome"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	EmpresaActive    = "active"
	EmpresaSuspended = "suspended"
)

// Active reports whether the empresa may use the platform.
func (e *Empresa) Active() bool {
	return e.Status == EmpresaActive
}
