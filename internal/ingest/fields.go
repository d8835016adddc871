package ingest

import "strings"

// Field is a canonical constituent column.
type Field string

const (
	FieldNome        Field = "nome"
	FieldCPF         Field = "cpf"
	FieldNascimento  Field = "nascimento"
	FieldWhatsapp    Field = "whatsapp"
	FieldTelefone    Field = "telefone"
	FieldGenero      Field = "genero"
	FieldTitulo      Field = "titulo"
	FieldZona        Field = "zona"
	FieldSecao       Field = "secao"
	FieldCEP         Field = "cep"
	FieldLogradouro  Field = "logradouro"
	FieldCidade      Field = "cidade"
	FieldBairro      Field = "bairro"
	FieldNumero      Field = "numero"
	FieldComplemento Field = "complemento"
	FieldUF          Field = "uf"
	FieldNomeMae     Field = "nome_mae"
)

// aliases lists, per canonical field, the normalized headers it is read from in priority order.
var aliases = []struct {
	field Field
	keys  []string
}{
	{FieldNome, []string{"nome"}},
	{FieldCPF, []string{"cpf"}},
	{FieldNascimento, []string{"nascimento", "data_nascimento"}},
	{FieldWhatsapp, []string{"whatsapp", "celular", "telefone_celular"}},
	{FieldTelefone, []string{"telefone", "fone", "telefone_fixo"}},
	{FieldGenero, []string{"genero", "sexo"}},
	{FieldTitulo, []string{"titulo", "titulo_eleitor", "titulo_eleitoral"}},
	{FieldZona, []string{"zona", "zona_eleitoral"}},
	{FieldSecao, []string{"secao", "secao_eleitoral"}},
	{FieldCEP, []string{"cep"}},
	{FieldLogradouro, []string{"logradouro", "endereco", "rua"}},
	{FieldCidade, []string{"cidade", "municipio"}},
	{FieldBairro, []string{"bairro"}},
	{FieldNumero, []string{"numero", "num", "numero_casa"}},
	{FieldComplemento, []string{"complemento"}},
	{FieldUF, []string{"uf", "estado"}},
	{FieldNomeMae, []string{"nome_mae", "mae", "nome_da_mae"}},
}

var knownKeys = func() map[string]Field {
	m := make(map[string]Field)
	for _, a := range aliases {
		for _, k := range a.keys {
			m[k] = a.field
		}
	}
	return m
}()

// IsKnownKey reports whether a normalized header feeds any canonical field.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}

// Fields is the typed intermediate form of a row: canonical field to value, holding only
// fields that had a non-blank value under one of their aliases.
type Fields map[Field]string

// Get returns the value of f and whether it was present.
func (f Fields) Get(field Field) (string, bool) {
	v, ok := f[field]
	return v, ok
}

// Resolve picks, for every canonical field, the first alias with a non-blank value.
// Values are trimmed; headers outside the alias table are dropped.
func Resolve(row RawRow) Fields {
	out := make(Fields, len(aliases))
	for _, a := range aliases {
		for _, k := range a.keys {
			if v := strings.TrimSpace(row[k]); v != "" {
				out[a.field] = v
				break
			}
		}
	}
	return out
}
