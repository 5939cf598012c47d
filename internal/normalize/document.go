// Package normalize holds the pure helpers used to compare tax ids, procedural
// roles and case numbers coming from the portal.
package normalize

import (
	"strconv"
	"strings"
	"unicode"
)

// Kind identifies the type of a tax id
type Kind string

const (
	KindIndividual   Kind = "cpf"
	KindOrganization Kind = "cnpj"
	KindUnknown      Kind = ""
)

const (
	individualLength   = 11
	organizationLength = 14
)

// OnlyDigits strips every non-digit rune
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeTaxID returns the digits of a CPF/CNPJ, dropping punctuation
func NormalizeTaxID(s string) string {
	return OnlyDigits(s)
}

// KindOf reports whether a tax id looks like a CPF or a CNPJ by its length
func KindOf(doc string) Kind {
	switch len(NormalizeTaxID(doc)) {
	case individualLength:
		return KindIndividual
	case organizationLength:
		return KindOrganization
	default:
		return KindUnknown
	}
}

// ValidTaxID is a loose check: 11 or 14 digits and not a single repeated digit.
// Check digits are not verified.
func ValidTaxID(doc string) bool {
	digits := NormalizeTaxID(doc)
	if KindOf(digits) == KindUnknown {
		return false
	}
	return strings.Count(digits, digits[:1]) != len(digits)
}

// ValidTaxIDOfKind validates doc and checks it matches the declared kind
func ValidTaxIDOfKind(doc string, kind Kind) bool {
	return ValidTaxID(doc) && KindOf(doc) == kind
}

// NormalizeRole produces the comparison form of a procedural role:
// upper case, accents removed, no underscores or spaces.
func NormalizeRole(role string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(role) {
		r = foldAccent(r)
		if r == '_' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var specialRoles = buildRoleSet(
	"PERITO",
	"PERITO_CONTADOR",
	"PERITO_MEDICO",
	"PERITO_JUDICIAL",
	"MINISTERIO_PUBLICO",
	"MINISTERIO_PUBLICO_TRABALHO",
	"MINISTERIO_PUBLICO_DO_TRABALHO",
	"MINISTERIO_PUBLICO_ESTADUAL",
	"MINISTERIO_PUBLICO_FEDERAL",
	"ASSISTENTE",
	"ASSISTENTE_TECNICO",
	"TESTEMUNHA",
	"CUSTOS_LEGIS",
	"AMICUS_CURIAE",
	"PREPOSTO",
	"CURADOR",
	"CURADOR_ESPECIAL",
	"INVENTARIANTE",
	"ADMINISTRADOR",
	"SINDICO",
	"DEPOSITARIO",
	"LEILOEIRO",
	"LEILOEIRO_OFICIAL",
	"TRADUTOR",
	"INTERPRETE",
)

func buildRoleSet(roles ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[NormalizeRole(r)] = struct{}{}
	}
	return set
}

// IsSpecialRole reports whether a role always makes the party a third party
// (experts, prosecutors, witnesses and similar auxiliaries).
func IsSpecialRole(role string) bool {
	_, ok := specialRoles[NormalizeRole(role)]
	return ok
}

// CaseNumberSequence returns the sequential part of a CNJ case number, i.e. the
// integer before the first "-". Returns 0 when it cannot be parsed.
func CaseNumberSequence(caseNumber string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(caseNumber), "-")
	n, err := strconv.Atoi(OnlyDigits(head))
	if err != nil {
		return 0
	}
	return n
}

func foldAccent(r rune) rune {
	switch r {
	case 'Á', 'À', 'Â', 'Ã', 'Ä':
		return 'A'
	case 'É', 'È', 'Ê', 'Ë':
		return 'E'
	case 'Í', 'Ì', 'Î', 'Ï':
		return 'I'
	case 'Ó', 'Ò', 'Ô', 'Õ', 'Ö':
		return 'O'
	case 'Ú', 'Ù', 'Û', 'Ü':
		return 'U'
	case 'Ç':
		return 'C'
	}
	return r
}
