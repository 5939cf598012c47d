package parties

import (
	"testing"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/stretchr/testify/require"
)

const ownerCPF = "123.456.789-01"

func TestNewClassifierRejectsBadOwner(t *testing.T) {
	for _, doc := range []string{"", "123", "111.111.111-11", "abc"} {
		_, err := NewClassifier(doc, logger.NewNop())
		require.ErrorIs(t, err, ErrInvalidOwnerDocument, doc)
	}

	_, err := NewClassifier("12.345.678/0001-90", nil)
	require.NoError(t, err)
}

func TestClassify(t *testing.T) {
	c, err := NewClassifier(ownerCPF, logger.NewNop())
	require.NoError(t, err)

	ours := driver.Representative{Name: "Dra. Teste", Document: "12345678901", DocumentType: "CPF"}
	theirs := driver.Representative{Name: "Dr. Outro", Document: "98765432100"}

	tests := []struct {
		name   string
		party  driver.Party
		kind   string
		reason Reason
	}{
		{
			name:   "special role wins over a document match",
			party:  driver.Party{Name: "Perito", Role: "perito_contador", Representatives: []driver.Representative{ours}},
			kind:   database.PartyThird,
			reason: ReasonSpecialRole,
		},
		{
			name:   "accented special role",
			party:  driver.Party{Name: "MPT", Role: "Ministério_Público_Trabalho"},
			kind:   database.PartyThird,
			reason: ReasonSpecialRole,
		},
		{
			name:   "represented by the owner",
			party:  driver.Party{Name: "Cliente", Role: "RECLAMANTE", Representatives: []driver.Representative{theirs, ours}},
			kind:   database.PartyClient,
			reason: ReasonRepresentedByUs,
		},
		{
			name:   "owner document with default type",
			party:  driver.Party{Name: "Cliente", Role: "RECLAMANTE", Representatives: []driver.Representative{{Document: "123.456.789-01"}}},
			kind:   database.PartyClient,
			reason: ReasonRepresentedByUs,
		},
		{
			name:   "no representatives",
			party:  driver.Party{Name: "Empresa", Role: "RECLAMADO"},
			kind:   database.PartyOpposing,
			reason: ReasonNoRepresentatives,
		},
		{
			name:   "other representatives only",
			party:  driver.Party{Name: "Empresa", Role: "RECLAMADO", Representatives: []driver.Representative{theirs}},
			kind:   database.PartyOpposing,
			reason: ReasonNoMatch,
		},
		{
			name: "malformed and unknown documents are skipped",
			party: driver.Party{Name: "Empresa", Role: "RECLAMADO", Representatives: []driver.Representative{
				{Document: "12345"},
				{Document: "12345678901", DocumentType: "OAB"},
				{Document: "12345678901", DocumentType: "CNPJ"},
				{Document: ""},
			}},
			kind:   database.PartyOpposing,
			reason: ReasonNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.party)
			require.Equal(t, tt.kind, got.Kind)
			require.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestClassifyOrganizationOwner(t *testing.T) {
	c, err := NewClassifier("12.345.678/0001-90", logger.NewNop())
	require.NoError(t, err)

	got := c.Classify(driver.Party{Role: "RECLAMANTE", Representatives: []driver.Representative{
		{Document: "12345678000190", DocumentType: "CNPJ"},
	}})
	require.Equal(t, database.PartyClient, got.Kind)
}
