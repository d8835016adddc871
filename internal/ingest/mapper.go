package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/gbp-politico/backend/internal/models"
)

// IssueKind classifies a lossy or rejected value transform.
type IssueKind string

const (
	IssuePadded      IssueKind = "padded"
	IssueTruncated   IssueKind = "truncated"
	IssueRejected    IssueKind = "rejected"
	IssueInvalidDate IssueKind = "invalid_date"
)

// Issue records a value that was not stored exactly as it appeared in the file.
type Issue struct {
	Field Field     `json:"field"`
	Kind  IssueKind `json:"kind"`
	Value string    `json:"value"`
}

// MapContext carries the values stamped on every record of a run.
type MapContext struct {
	EmpresaID uuid.UUID
	UploadID  uuid.UUID
	Now       time.Time
}

// Mapper converts resolved fields into constituent records.
//
// By default CPF and phone numbers are forced to 11 digits by zero-padding or truncation and
// each change is reported as an Issue. With Strict set, values whose digit count is not a
// valid length (11 for CPF, 10 or 11 for phones) are left empty and reported as rejected.
type Mapper struct {
	Strict bool
}

var validLengths = map[Field][]int{
	FieldCPF:      {11},
	FieldWhatsapp: {10, 11},
	FieldTelefone: {10, 11},
}

// Map builds the record for one row. Columns outside the allow-list never reach the record.
func (m Mapper) Map(f Fields, mc MapContext) (models.Eleitor, []Issue) {
	var issues []Issue
	uploadID := mc.UploadID

	rec := models.Eleitor{EleitorFields: models.EleitorFields{
		EmpresaID:   mc.EmpresaID,
		UploadID:    &uploadID,
		Nome:        f[FieldNome],
		CPF:         m.number(FieldCPF, f[FieldCPF], &issues),
		Whatsapp:    m.number(FieldWhatsapp, f[FieldWhatsapp], &issues),
		Telefone:    m.number(FieldTelefone, f[FieldTelefone], &issues),
		Genero:      f[FieldGenero],
		Titulo:      f[FieldTitulo],
		Zona:        f[FieldZona],
		Secao:       f[FieldSecao],
		CEP:         DigitsOnly(f[FieldCEP]),
		Logradouro:  f[FieldLogradouro],
		Cidade:      f[FieldCidade],
		Bairro:      f[FieldBairro],
		Numero:      f[FieldNumero],
		Complemento: f[FieldComplemento],
		UF:          f[FieldUF],
		NomeMae:     f[FieldNomeMae],
		CreatedAt:   mc.Now,
	}}

	if raw, ok := f.Get(FieldNascimento); ok {
		if t, ok := ParseDate(raw); ok {
			rec.Nascimento = &t
		} else {
			issues = append(issues, Issue{Field: FieldNascimento, Kind: IssueInvalidDate, Value: raw})
		}
	}
	return rec, issues
}

func (m Mapper) number(field Field, raw string, issues *[]Issue) string {
	digits := DigitsOnly(raw)
	if digits == "" {
		return ""
	}
	if m.Strict {
		for _, n := range validLengths[field] {
			if len(digits) == n {
				return digits
			}
		}
		*issues = append(*issues, Issue{Field: field, Kind: IssueRejected, Value: raw})
		return ""
	}
	switch {
	case len(digits) < nationalSize:
		*issues = append(*issues, Issue{Field: field, Kind: IssuePadded, Value: raw})
	case len(digits) > nationalSize:
		*issues = append(*issues, Issue{Field: field, Kind: IssueTruncated, Value: raw})
	}
	return fixedWidth(digits, nationalSize)
}
