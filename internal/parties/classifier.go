// Package parties decides whether a case party is the attorney's client, the
// opposing party or a third party.
package parties

import (
	"errors"
	"strings"

	"github.com/JustJay7/pje-capture/internal/database"
	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/internal/normalize"
	"github.com/JustJay7/pje-capture/pkg/logger"
)

// ErrInvalidOwnerDocument means the capturing attorney's tax id cannot be used for matching
var ErrInvalidOwnerDocument = errors.New("attorney document is missing or invalid")

type Reason string

const (
	ReasonSpecialRole       Reason = "special_role"
	ReasonRepresentedByUs   Reason = "represented_by_owner"
	ReasonNoRepresentatives Reason = "no_representatives"
	ReasonNoMatch           Reason = "no_matching_representative"
)

type Classification struct {
	Kind   string
	Reason Reason
}

// Classifier compares party representatives against one attorney
type Classifier struct {
	owner string
	log   *logger.Logger
}

// NewClassifier validates the owner document once, before any party is seen
func NewClassifier(ownerDocument string, log *logger.Logger) (*Classifier, error) {
	doc := normalize.NormalizeTaxID(ownerDocument)
	if !normalize.ValidTaxID(doc) {
		return nil, ErrInvalidOwnerDocument
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Classifier{owner: doc, log: log}, nil
}

func (c *Classifier) Classify(p driver.Party) Classification {
	if normalize.IsSpecialRole(p.Role) {
		return Classification{Kind: database.PartyThird, Reason: ReasonSpecialRole}
	}

	if len(p.Representatives) == 0 {
		c.log.Warn("Party has no representatives, classified as opposing party", "party", p.Name, "role", p.Role)
		return Classification{Kind: database.PartyOpposing, Reason: ReasonNoRepresentatives}
	}

	for _, r := range p.Representatives {
		doc, ok := representativeDocument(r)
		if !ok {
			c.log.Debug("Skipping representative without a usable document", "representative", r.Name, "document_type", r.DocumentType)
			continue
		}
		if doc == c.owner {
			return Classification{Kind: database.PartyClient, Reason: ReasonRepresentedByUs}
		}
	}

	return Classification{Kind: database.PartyOpposing, Reason: ReasonNoMatch}
}

// representativeDocument normalizes a representative's tax id; the declared type defaults to CPF
func representativeDocument(r driver.Representative) (string, bool) {
	doc := normalize.NormalizeTaxID(r.Document)
	if doc == "" {
		return "", false
	}

	var kind normalize.Kind
	switch strings.ToUpper(strings.TrimSpace(r.DocumentType)) {
	case "", "CPF":
		kind = normalize.KindIndividual
	case "CNPJ":
		kind = normalize.KindOrganization
	default:
		return "", false
	}
	if !normalize.ValidTaxIDOfKind(doc, kind) {
		return "", false
	}
	return doc, true
}
