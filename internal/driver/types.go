package driver

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Credential is the login of one attorney on one court
type Credential struct {
	ID         uint
	AttorneyID uint
	Login      string
	Secret     string
}

// CourtConfig tells a driver how to reach one court instance
type CourtConfig struct {
	ID        uint
	System    string
	CourtType string
	Code      string
	Instance  string
	BaseURL   string
	LoginURL  string
	APIURL    string
	Timeout   time.Duration
}

// Instance levels
const (
	FirstInstance    = "primeiro_grau"
	SecondInstance   = "segundo_grau"
	SuperiorInstance = "tribunal_superior"
)

// Attorney is the identity the portal reports for the logged-in user
type Attorney struct {
	ExternalID string
	TaxID      string
	Name       string
}

// Page is one page of a paginated portal listing
type Page[T any] struct {
	Number       int `json:"pagina"`
	Size         int `json:"tamanhoPagina"`
	TotalPages   int `json:"qtdPaginas"`
	TotalRecords int `json:"totalRegistros"`
	Records      []T `json:"resultado"`
}

// Case panels
const (
	OriginGeneral  = "acervo_geral"
	OriginArchived = "arquivado"
)

// CaseListFilter selects one of the attorney's case panels
type CaseListFilter struct {
	Origin   string
	PageSize int
}

// HearingFilter selects hearings in a date window with a status code (M, F or C)
type HearingFilter struct {
	From   time.Time
	To     time.Time
	Status string
}

// Pending filing deadline filters
const (
	DeadlineNone    = "N"
	DeadlineWithout = "I"
)

// PendingFilter selects pending filings by deadline filter code
type PendingFilter struct {
	DeadlineFilter string
	PageSize       int
}

// Ref is a nested id/description object
type Ref struct {
	ID          int64  `json:"id"`
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
	Acronym     string `json:"sigla"`
}

// CaseSummary is a case as listed in the attorney panels
type CaseSummary struct {
	ID             int64     `json:"id"`
	CaseNumber     string    `json:"numeroProcesso"`
	Number         int       `json:"numero"`
	CourtDivision  string    `json:"descricaoOrgaoJulgador"`
	CaseClass      string    `json:"classeJudicial"`
	Secret         Flag      `json:"segredoDeJustica"`
	StatusCode     string    `json:"codigoStatusProcesso"`
	Priority       Flag      `json:"prioridadeProcessual"`
	PlaintiffName  string    `json:"nomeParteAutora"`
	PlaintiffCount int       `json:"qtdeParteAutora"`
	DefendantName  string    `json:"nomeParteRe"`
	DefendantCount int       `json:"qtdeParteRe"`
	FiledAt        Timestamp `json:"dataAutuacao"`
	DigitalVenue   Flag      `json:"juizoDigital"`
	ArchivedAt     Timestamp `json:"dataArquivamento"`
	NextHearingAt  Timestamp `json:"dataProximaAudiencia"`
	HasAssociation Flag      `json:"temAssociacao"`
}

// HearingCase is the case block embedded in a hearing
type HearingCase struct {
	ID            int64  `json:"id"`
	Number        string `json:"numero"`
	Class         *Ref   `json:"classeJudicial"`
	CourtDivision *Ref   `json:"orgaoJulgador"`
	Secret        Flag   `json:"segredoDeJustica"`
	DigitalVenue  Flag   `json:"juizoDigital"`
}

type HearingType struct {
	ID          int64  `json:"id"`
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
	Virtual     Flag   `json:"isVirtual"`
}

type HearingRoom struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
}

type HearingPole struct {
	Name string `json:"nome"`
	Many Flag   `json:"representaVarios"`
}

type HearingSchedule struct {
	Start string `json:"horaInicial"`
	End   string `json:"horaFinal"`
}

// Hearing is one entry of the external users' hearing agenda
type Hearing struct {
	ID                int64            `json:"id"`
	CaseID            int64            `json:"idProcesso"`
	CaseNumber        string           `json:"nrProcesso"`
	StartsAt          Timestamp        `json:"dataInicio"`
	EndsAt            Timestamp        `json:"dataFim"`
	Schedule          *HearingSchedule `json:"pautaAudienciaHorario"`
	Room              *HearingRoom     `json:"salaAudiencia"`
	Status            string           `json:"status"`
	StatusDescription string           `json:"statusDescricao"`
	Type              *HearingType     `json:"tipo"`
	Case              *HearingCase     `json:"processo"`
	Designated        Flag             `json:"designada"`
	InProgress        Flag             `json:"emAndamento"`
	ActiveDocument    Flag             `json:"documentoAtivo"`
	ActivePole        *HearingPole     `json:"poloAtivo"`
	PassivePole       *HearingPole     `json:"poloPassivo"`
	VirtualURL        string           `json:"urlAudienciaVirtual"`
}

// Number returns the case number, falling back to the embedded case block
func (h Hearing) Number() string {
	if n := strings.TrimSpace(h.CaseNumber); n != "" {
		return n
	}
	if h.Case != nil {
		return strings.TrimSpace(h.Case.Number)
	}
	return ""
}

// OwnerID returns the owning case id, falling back to the embedded case block
func (h Hearing) OwnerID() int64 {
	if h.CaseID != 0 {
		return h.CaseID
	}
	if h.Case != nil {
		return h.Case.ID
	}
	return 0
}

// PendingFiling is a notice awaiting the attorney's response
type PendingFiling struct {
	ID              int64     `json:"id"`
	CaseID          int64     `json:"idProcesso"`
	CaseNumber      string    `json:"numeroProcesso"`
	CourtDivision   string    `json:"descricaoOrgaoJulgador"`
	CaseClass       string    `json:"classeJudicial"`
	PlaintiffName   string    `json:"nomeParteAutora"`
	DefendantName   string    `json:"nomeParteRe"`
	NoticeType      string    `json:"tipoExpediente"`
	IssuedAt        Timestamp `json:"dataCriacaoExpediente"`
	AcknowledgedAt  Timestamp `json:"dataCienciaParte"`
	DeadlineAt      Timestamp `json:"dataPrazoLegalParte"`
	DeadlineExpired Flag      `json:"prazoVencido"`
	Secret          Flag      `json:"segredoDeJustica"`
	DigitalVenue    Flag      `json:"juizoDigital"`
	DocumentID      int64     `json:"idDocumento"`

	// DeadlineFilter records which listing the record came from (N or I)
	DeadlineFilter string `json:"-"`
}

type ExamSituation struct {
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
}

// ExpertExam is an expert examination assigned in a first instance case
type ExpertExam struct {
	ID                   int64          `json:"id"`
	CaseID               int64          `json:"idProcesso"`
	CaseNumber           string         `json:"numeroProcesso"`
	CourtDivisionName    string         `json:"nomeOrgaoJulgador"`
	SpecialtyID          int64          `json:"idEspecialidade"`
	SpecialtyDescription string         `json:"descricaoEspecialidade"`
	ExpertID             int64          `json:"idPerito"`
	ExpertName           string         `json:"nomePerito"`
	ClassAcronym         string         `json:"siglaClasseJudicialProcesso"`
	DueAt                Timestamp      `json:"prazoEntrega"`
	AcceptedAt           Timestamp      `json:"dataAceite"`
	RequestedAt          Timestamp      `json:"dataCriacao"`
	Situation            *ExamSituation `json:"situacao"`
	ExamStatus           string         `json:"situacaoPericia"`
	ReportDocumentID     int64          `json:"idDocumentoLaudo"`
	ReportFiled          Flag           `json:"laudoJuntado"`
	NextHearingAt        Timestamp      `json:"dataProximaAudienciaProcesso"`
	Secret               Flag           `json:"processoEmSegredoJustica"`
	DigitalVenue         Flag           `json:"juizoDigital"`
	Archived             Flag           `json:"arquivado"`
	Priority             Flag           `json:"prioridadeProcessual"`
}

// TimelineItem is one movement or document of a case
type TimelineItem struct {
	ID         int64     `json:"id"`
	UniqueID   string    `json:"idUnicoDocumento,omitempty"`
	Title      string    `json:"titulo"`
	Type       string    `json:"tipo,omitempty"`
	Date       Timestamp `json:"data"`
	Document   Flag      `json:"documento"`
	Author     string    `json:"nomeResponsavel,omitempty"`
	StorageKey string    `json:"storageKey,omitempty"`
	StorageURL string    `json:"storageUrl,omitempty"`
}

// Poles
const (
	PoleActive  = "ATIVO"
	PolePassive = "PASSIVO"
	PoleOther   = "OUTROS"
)

// Representative is a legal representative listed under a party
type Representative struct {
	PersonID     int64  `json:"idPessoa"`
	Name         string `json:"nome"`
	DocumentType string `json:"tipoDocumento"`
	Document     string `json:"numeroDocumento"`
	BarNumber    string `json:"numeroOAB"`
	BarState     string `json:"ufOAB"`
	BarStatus    string `json:"situacaoOAB,omitempty"`
	Type         string `json:"tipo"`
	Email        string `json:"email,omitempty"`
}

// Party is one party of a case as reported by the portal
type Party struct {
	ID              int64            `json:"idParte"`
	PersonID        int64            `json:"idPessoa"`
	Name            string           `json:"nome"`
	Role            string           `json:"tipoParte"`
	Pole            string           `json:"polo"`
	Principal       bool             `json:"principal"`
	DocumentType    string           `json:"tipoDocumento"`
	Document        string           `json:"numeroDocumento"`
	Emails          []string         `json:"emails,omitempty"`
	Representatives []Representative `json:"representantes"`
}

// PartiesPayload is the parsed party list plus the literal upstream body
type PartiesPayload struct {
	Parties []Party
	Raw     json.RawMessage
}

// Document is a downloaded binary document
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Flag decodes the portal's booleans, which arrive as bools, numbers or "S"/"N" strings
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = false
	case bytes.Equal(data, []byte("true")):
		*f = true
	case bytes.Equal(data, []byte("false")):
		*f = false
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "S", "SIM", "TRUE", "1", "Y":
			*f = true
		default:
			*f = false
		}
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return err
		}
		*f = n != 0
	}
	return nil
}

var saoPaulo = loadSaoPaulo()

func loadSaoPaulo() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// PortalLocation is the zone assumed for portal timestamps without an offset
func PortalLocation() *time.Location {
	return saoPaulo
}

var localLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp decodes portal dates; values without an offset are read as São Paulo time
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// null or a non-string value
		t.Time = time.Time{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Ptr returns nil for the zero timestamp
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// ParseTimestamp parses RFC3339 or offset-less portal timestamps
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	var lastErr error
	for _, layout := range localLayouts {
		ts, err := time.ParseInLocation(layout, s, saoPaulo)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
