package ingest_test

import (
	"testing"

	"github.com/gbp-politico/backend/internal/ingest"
)

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Data Nascimento":    "data_nascimento",
		"DATA_NASCIMENTO":    "data_nascimento",
		"data   nascimento":  "data_nascimento",
		"Seção Eleitoral":    "secao_eleitoral",
		"Nome da Mãe":        "nome_da_mae",
		"  WhatsApp ":        "whatsapp",
		"Título (Eleitor)":   "titulo_eleitor",
		"\ufeffNome":         "nome",
		"Município":          "municipio",
		"Endereço\tCompleto": "endereco_completo",
		"CEP-":               "cep",
		"":                   "",
	}
	for in, want := range cases {
		if got := ingest.NormalizeHeader(in); got != want {
			t.Fatalf("NormalizeHeader(%q): expected %q, got %q", in, want, got)
		}
	}
}
