package normalize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeTaxID(t *testing.T) {
	require.Equal(t, "12345678901", NormalizeTaxID("123.456.789-01"))
	require.Equal(t, "12345678000190", NormalizeTaxID(" 12.345.678/0001-90 "))
	require.Equal(t, "", NormalizeTaxID("n/a"))
}

func TestValidTaxID(t *testing.T) {
	tests := []struct {
		doc  string
		want bool
		kind Kind
	}{
		{doc: "123.456.789-01", want: true, kind: KindIndividual},
		{doc: "12.345.678/0001-90", want: true, kind: KindOrganization},
		{doc: "000.000.000-00", want: false, kind: KindIndividual},
		{doc: "11111111111111", want: false, kind: KindOrganization},
		{doc: "1234567890", want: false, kind: KindUnknown},
		{doc: "", want: false, kind: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			require.Equal(t, tt.want, ValidTaxID(tt.doc))
			require.Equal(t, tt.kind, KindOf(tt.doc))
		})
	}

	require.True(t, ValidTaxIDOfKind("123.456.789-01", KindIndividual))
	require.False(t, ValidTaxIDOfKind("123.456.789-01", KindOrganization))
}

func TestIsSpecialRole(t *testing.T) {
	special := []string{"PERITO", "perito contador", "Ministério Público do Trabalho", "TESTEMUNHA", "custos_legis", "Intérprete"}
	for _, role := range special {
		require.True(t, IsSpecialRole(role), role)
	}

	regular := []string{"RECLAMANTE", "RECLAMADO", "AUTOR", "", "ADVOGADO"}
	for _, role := range regular {
		require.False(t, IsSpecialRole(role), role)
	}
}

func TestCaseNumberSequence(t *testing.T) {
	require.Equal(t, 1, CaseNumberSequence("0001-20"))
	require.Equal(t, 10234, CaseNumberSequence("0010234-55.2023.5.03.0001"))
	require.Equal(t, 0, CaseNumberSequence(""))
	require.Equal(t, 0, CaseNumberSequence("-12"))
}
