package models

import (
	"time"

	"github.com/google/uuid"
)

// EleitorFields are the business fields of a constituent, shared by the live and archive tables.
type EleitorFields struct {
	EmpresaID       uuid.UUID  `json:"empresa_id"`
	UploadID        *uuid.UUID `json:"upload_id,omitempty"`
	Nome            string     `json:"nome"`
	CPF             string     `json:"cpf"`
	Nascimento      *time.Time `json:"nascimento,omitempty"`
	Whatsapp        string     `json:"whatsapp"`
	Telefone        string     `json:"telefone"`
	Genero          string     `json:"genero"`
	Titulo          string     `json:"titulo"`
	Zona            string     `json:"zona"`
	Secao           string     `json:"secao"`
	CEP             string     `json:"cep"`
	Logradouro      string     `json:"logradouro"`
	Cidade          string     `json:"cidade"`
	Bairro          string     `json:"bairro"`
	Numero          string     `json:"numero"`
	Complemento     string     `json:"complemento"`
	UF              string     `json:"uf"`
	NomeMae         string     `json:"nome_mae"`
	Indicado        string     `json:"indicado"`
	Categoria       string     `json:"categoria"`
	GBPAtendimentos string     `json:"gbp_atendimentos"`
	Responsavel     string     `json:"responsavel"`
	Latitude        string     `json:"latitude"`
	Longitude       string     `json:"longitude"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Eleitor is a live constituent record (table gbp_eleitores).
type Eleitor struct {
	ID uuid.UUID `json:"id"`
	EleitorFields
}

// DeletedEleitor is an archived constituent (table gbp_deletados). It carries no copy of the
// live record's id and is never mutated after insert.
type DeletedEleitor struct {
	EleitorFields
}

// ToDeleted maps a live record to its archive shape, stamping a fresh created_at.
func (e Eleitor) ToDeleted(now time.Time) DeletedEleitor {
	f := e.EleitorFields
	f.CreatedAt = now
	return DeletedEleitor{EleitorFields: f}
}
