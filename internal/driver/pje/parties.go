package pje

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JustJay7/pje-capture/internal/driver"
)

var poleKeys = []string{"ATIVO", "PASSIVO", "TERCEIROS", "OUTROS", "ativo", "passivo", "terceiros", "outros"}

var states = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
	"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
	"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
	"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
}

var digitsOnly = regexp.MustCompile(`^\d+$`)

// ParseParties reads the parties endpoint body. The portal answers either with
// a flat array or with an object holding one array per pole.
func ParseParties(body []byte) ([]driver.Party, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	var records []map[string]any
	if body[0] == '[' {
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("decode parties: %w", err)
		}
	} else {
		var byPole map[string]json.RawMessage
		if err := json.Unmarshal(body, &byPole); err != nil {
			return nil, fmt.Errorf("decode parties: %w", err)
		}
		for _, key := range poleKeys {
			raw, ok := byPole[key]
			if !ok {
				continue
			}
			var list []map[string]any
			if err := json.Unmarshal(raw, &list); err != nil {
				continue
			}
			records = append(records, list...)
		}
	}

	parties := make([]driver.Party, 0, len(records))
	for _, rec := range records {
		parties = append(parties, parseParty(rec))
	}
	return parties, nil
}

func parseParty(rec map[string]any) driver.Party {
	p := driver.Party{
		ID:           num(rec, "id", "idParte"),
		PersonID:     num(rec, "idPessoa", "id_pessoa"),
		Name:         str(rec, "nome", "nomeCompleto"),
		Role:         str(rec, "tipo", "tipoParte", "tipo_parte"),
		Pole:         mapPole(str(rec, "polo")),
		Principal:    boolean(rec, "principal", "partePrincipal"),
		DocumentType: documentType(str(rec, "tipoDocumento", "tipo_documento")),
		Document:     str(rec, "documento", "numeroDocumento", "numero_documento"),
		Emails:       emails(rec),
	}
	if p.Role == "" {
		p.Role = "OUTRO"
	}

	reps, _ := rec["representantes"].([]any)
	for _, r := range reps {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		p.Representatives = append(p.Representatives, parseRepresentative(m))
	}
	return p
}

func parseRepresentative(rec map[string]any) driver.Representative {
	bar, state := splitBarNumber(str(rec, "numeroOab", "numero_oab"), str(rec, "ufOab", "uf_oab"))
	r := driver.Representative{
		PersonID:     num(rec, "idPessoa", "id_pessoa"),
		Name:         str(rec, "nome"),
		DocumentType: str(rec, "tipoDocumento", "tipo_documento"),
		Document:     str(rec, "documento", "numeroDocumento", "numero_documento", "cpf"),
		BarNumber:    bar,
		BarState:     state,
		BarStatus:    str(rec, "situacaoOab", "situacao_oab"),
		Type:         str(rec, "tipo"),
		Email:        str(rec, "email"),
	}
	if r.DocumentType == "" {
		r.DocumentType = "CPF"
	}
	if r.Type == "" {
		r.Type = "ADVOGADO"
	}
	return r
}

func mapPole(pole string) string {
	switch strings.ToUpper(strings.TrimSpace(pole)) {
	case "ATIVO", "POLO_ATIVO":
		return driver.PoleActive
	case "PASSIVO", "POLO_PASSIVO":
		return driver.PolePassive
	default:
		return driver.PoleOther
	}
}

func documentType(t string) string {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case "CPF":
		return "CPF"
	case "CNPJ":
		return "CNPJ"
	default:
		return "OUTRO"
	}
}

// splitBarNumber separates a state prefix such as "MG123456" when no state is given
func splitBarNumber(number, state string) (string, string) {
	number = strings.ToUpper(strings.TrimSpace(number))
	state = strings.ToUpper(strings.TrimSpace(state))
	if number == "" || state != "" {
		return number, state
	}
	if len(number) >= 3 && states[number[:2]] && digitsOnly.MatchString(number[2:]) {
		return number[2:], number[:2]
	}
	return number, ""
}

func emails(rec map[string]any) []string {
	seen := map[string]bool{}
	var out []string
	add := func(v any) {
		s, ok := v.(string)
		if !ok || s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	if list, ok := rec["emails"].([]any); ok {
		for _, e := range list {
			add(e)
		}
	}
	add(rec["email"])
	return out
}

func str(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func num(rec map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case float64:
			if v != 0 {
				return int64(v)
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && n != 0 {
				return n
			}
		}
	}
	return 0
}

func boolean(rec map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if s := strings.ToUpper(v); s == "S" || s == "TRUE" {
				return true
			}
		}
	}
	return false
}
