package database

import (
	"time"

	"gorm.io/gorm"
)

// Case origins
const (
	OriginGeneral  = "acervo_geral"
	OriginArchived = "arquivado"
)

// Hearing status codes as reported by the portal
const (
	HearingDesignated = "M"
	HearingRealized   = "F"
	HearingCancelled  = "C"
)

// Party classification kinds
const (
	PartyClient   = "client"
	PartyOpposing = "opposing_party"
	PartyThird    = "third_party"
)

// Capture log statuses
const (
	CaptureStatusPending    = "pending"
	CaptureStatusInProgress = "in_progress"
	CaptureStatusCompleted  = "completed"
	CaptureStatusFailed     = "failed"
)

// UnknownClass is stored when the portal omits the case class
const UnknownClass = "Não informada"

// Case is one docket entry ("acervo") tracked per court and instance
type Case struct {
	gorm.Model
	ExternalID     int64      `json:"external_id" gorm:"not null;uniqueIndex:idx_cases_natural_key"`
	Court          string     `json:"court" gorm:"not null;uniqueIndex:idx_cases_natural_key"`
	Instance       string     `json:"instance" gorm:"not null;uniqueIndex:idx_cases_natural_key"`
	CaseNumber     string     `json:"case_number" gorm:"not null;uniqueIndex:idx_cases_natural_key"`
	AttorneyID     uint       `json:"attorney_id" gorm:"index"`
	Origin         string     `json:"origin"`
	Sequence       int        `json:"sequence"`
	CourtDivision  string     `json:"court_division"`
	CaseClass      string     `json:"case_class"`
	Secret         bool       `json:"secret"`
	StatusCode     string     `json:"status_code"`
	Priority       bool       `json:"priority"`
	PlaintiffName  string     `json:"plaintiff_name"`
	PlaintiffCount int        `json:"plaintiff_count"`
	DefendantName  string     `json:"defendant_name"`
	DefendantCount int        `json:"defendant_count"`
	FiledAt        *time.Time `json:"filed_at"`
	DigitalVenue   bool       `json:"digital_venue"`
	ArchivedAt     *time.Time `json:"archived_at"`
	NextHearingAt  *time.Time `json:"next_hearing_at"`
	HasAssociation bool       `json:"has_association"`
	Minimal        bool       `json:"minimal"`
	PreviousValues string     `json:"previous_values,omitempty" gorm:"type:text"`
}

func (c *Case) CompareFields() map[string]any {
	return map[string]any{
		"external_id":     c.ExternalID,
		"court":           c.Court,
		"instance":        c.Instance,
		"case_number":     c.CaseNumber,
		"attorney_id":     c.AttorneyID,
		"origin":          c.Origin,
		"sequence":        c.Sequence,
		"court_division":  c.CourtDivision,
		"case_class":      c.CaseClass,
		"secret":          c.Secret,
		"status_code":     c.StatusCode,
		"priority":        c.Priority,
		"plaintiff_name":  c.PlaintiffName,
		"plaintiff_count": c.PlaintiffCount,
		"defendant_name":  c.DefendantName,
		"defendant_count": c.DefendantCount,
		"filed_at":        c.FiledAt,
		"digital_venue":   c.DigitalVenue,
		"archived_at":     c.ArchivedAt,
		"next_hearing_at": c.NextHearingAt,
		"has_association": c.HasAssociation,
		"minimal":         c.Minimal,
	}
}

// Hearing is a scheduled, realized or cancelled hearing of a case
type Hearing struct {
	gorm.Model
	ExternalID        int64      `json:"external_id" gorm:"not null;uniqueIndex:idx_hearings_natural_key"`
	Court             string     `json:"court" gorm:"not null;uniqueIndex:idx_hearings_natural_key"`
	Instance          string     `json:"instance" gorm:"not null;uniqueIndex:idx_hearings_natural_key"`
	CaseNumber        string     `json:"case_number" gorm:"not null;uniqueIndex:idx_hearings_natural_key"`
	CaseID            uint       `json:"case_id" gorm:"not null;index"`
	AttorneyID        uint       `json:"attorney_id"`
	CourtDivisionID   *uint      `json:"court_division_id"`
	CaseClassID       *uint      `json:"case_class_id"`
	HearingTypeID     *uint      `json:"hearing_type_id"`
	HearingRoomID     *uint      `json:"hearing_room_id"`
	StartsAt          *time.Time `json:"starts_at"`
	EndsAt            *time.Time `json:"ends_at"`
	RoomName          string     `json:"room_name"`
	Status            string     `json:"status"`
	StatusDescription string     `json:"status_description"`
	Designated        bool       `json:"designated"`
	InProgress        bool       `json:"in_progress"`
	ActiveDocument    bool       `json:"active_document"`
	ActivePoleName    string     `json:"active_pole_name"`
	ActivePoleMany    bool       `json:"active_pole_many"`
	PassivePoleName   string     `json:"passive_pole_name"`
	PassivePoleMany   bool       `json:"passive_pole_many"`
	VirtualURL        string     `json:"virtual_url"`
	Secret            bool       `json:"secret"`
	DigitalVenue      bool       `json:"digital_venue"`
	MinutesDocumentID *int64     `json:"minutes_document_id"`
	MinutesKey        string     `json:"minutes_key"`
	MinutesURL        string     `json:"minutes_url"`
	PreviousValues    string     `json:"previous_values,omitempty" gorm:"type:text"`
}

func (h *Hearing) CompareFields() map[string]any {
	return map[string]any{
		"external_id":         h.ExternalID,
		"court":               h.Court,
		"instance":            h.Instance,
		"case_number":         h.CaseNumber,
		"case_id":             h.CaseID,
		"attorney_id":         h.AttorneyID,
		"court_division_id":   h.CourtDivisionID,
		"case_class_id":       h.CaseClassID,
		"hearing_type_id":     h.HearingTypeID,
		"hearing_room_id":     h.HearingRoomID,
		"starts_at":           h.StartsAt,
		"ends_at":             h.EndsAt,
		"room_name":           h.RoomName,
		"status":              h.Status,
		"status_description":  h.StatusDescription,
		"designated":          h.Designated,
		"in_progress":         h.InProgress,
		"active_document":     h.ActiveDocument,
		"active_pole_name":    h.ActivePoleName,
		"active_pole_many":    h.ActivePoleMany,
		"passive_pole_name":   h.PassivePoleName,
		"passive_pole_many":   h.PassivePoleMany,
		"virtual_url":         h.VirtualURL,
		"secret":              h.Secret,
		"digital_venue":       h.DigitalVenue,
		"minutes_document_id": h.MinutesDocumentID,
		"minutes_key":         h.MinutesKey,
		"minutes_url":         h.MinutesURL,
	}
}

// PendingFiling is a notice ("expediente") that requires a response by a deadline
type PendingFiling struct {
	gorm.Model
	ExternalID      int64      `json:"external_id" gorm:"not null;uniqueIndex:idx_pending_filings_natural_key"`
	Court           string     `json:"court" gorm:"not null;uniqueIndex:idx_pending_filings_natural_key"`
	Instance        string     `json:"instance" gorm:"not null;uniqueIndex:idx_pending_filings_natural_key"`
	CaseNumber      string     `json:"case_number" gorm:"not null;uniqueIndex:idx_pending_filings_natural_key"`
	CaseID          uint       `json:"case_id" gorm:"not null;index"`
	AttorneyID      uint       `json:"attorney_id"`
	DeadlineFilter  string     `json:"deadline_filter"`
	CourtDivision   string     `json:"court_division"`
	CaseClass       string     `json:"case_class"`
	PlaintiffName   string     `json:"plaintiff_name"`
	DefendantName   string     `json:"defendant_name"`
	NoticeType      string     `json:"notice_type"`
	IssuedAt        *time.Time `json:"issued_at"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at"`
	DeadlineAt      *time.Time `json:"deadline_at"`
	DeadlineExpired bool       `json:"deadline_expired"`
	Secret          bool       `json:"secret"`
	DigitalVenue    bool       `json:"digital_venue"`
	DocumentID      *int64     `json:"document_id"`
	DocumentName    string     `json:"document_name"`
	DocumentKey     string     `json:"document_key"`
	DocumentURL     string     `json:"document_url"`
	PreviousValues  string     `json:"previous_values,omitempty" gorm:"type:text"`
}

func (p *PendingFiling) CompareFields() map[string]any {
	return map[string]any{
		"external_id":      p.ExternalID,
		"court":            p.Court,
		"instance":         p.Instance,
		"case_number":      p.CaseNumber,
		"case_id":          p.CaseID,
		"attorney_id":      p.AttorneyID,
		"deadline_filter":  p.DeadlineFilter,
		"court_division":   p.CourtDivision,
		"case_class":       p.CaseClass,
		"plaintiff_name":   p.PlaintiffName,
		"defendant_name":   p.DefendantName,
		"notice_type":      p.NoticeType,
		"issued_at":        p.IssuedAt,
		"acknowledged_at":  p.AcknowledgedAt,
		"deadline_at":      p.DeadlineAt,
		"deadline_expired": p.DeadlineExpired,
		"secret":           p.Secret,
		"digital_venue":    p.DigitalVenue,
		"document_id":      p.DocumentID,
		"document_name":    p.DocumentName,
		"document_key":     p.DocumentKey,
		"document_url":     p.DocumentURL,
	}
}

// ExpertExam is an expert examination ("perícia") assigned in a case.
// CaseID is mandatory.
type ExpertExam struct {
	gorm.Model
	ExternalID        int64      `json:"external_id" gorm:"not null;uniqueIndex:idx_expert_exams_natural_key"`
	Court             string     `json:"court" gorm:"not null;uniqueIndex:idx_expert_exams_natural_key"`
	Instance          string     `json:"instance" gorm:"not null;uniqueIndex:idx_expert_exams_natural_key"`
	CaseNumber        string     `json:"case_number" gorm:"not null;uniqueIndex:idx_expert_exams_natural_key"`
	CaseID            uint       `json:"case_id" gorm:"not null;index"`
	AttorneyID        uint       `json:"attorney_id"`
	CourtDivisionID   *uint      `json:"court_division_id"`
	SpecialtyID       *uint      `json:"specialty_id"`
	ExpertID          *uint      `json:"expert_id"`
	ClassAcronym      string     `json:"class_acronym"`
	DueAt             *time.Time `json:"due_at"`
	AcceptedAt        *time.Time `json:"accepted_at"`
	RequestedAt       *time.Time `json:"requested_at"`
	StatusCode        string     `json:"status_code"`
	StatusDescription string     `json:"status_description"`
	ExamStatus        string     `json:"exam_status"`
	ReportDocumentID  *int64     `json:"report_document_id"`
	ReportFiled       bool       `json:"report_filed"`
	NextHearingAt     *time.Time `json:"next_hearing_at"`
	Secret            bool       `json:"secret"`
	DigitalVenue      bool       `json:"digital_venue"`
	Archived          bool       `json:"archived"`
	Priority          bool       `json:"priority"`
	PreviousValues    string     `json:"previous_values,omitempty" gorm:"type:text"`
}

func (e *ExpertExam) CompareFields() map[string]any {
	return map[string]any{
		"external_id":        e.ExternalID,
		"court":              e.Court,
		"instance":           e.Instance,
		"case_number":        e.CaseNumber,
		"case_id":            e.CaseID,
		"attorney_id":        e.AttorneyID,
		"court_division_id":  e.CourtDivisionID,
		"specialty_id":       e.SpecialtyID,
		"expert_id":          e.ExpertID,
		"class_acronym":      e.ClassAcronym,
		"due_at":             e.DueAt,
		"accepted_at":        e.AcceptedAt,
		"requested_at":       e.RequestedAt,
		"status_code":        e.StatusCode,
		"status_description": e.StatusDescription,
		"exam_status":        e.ExamStatus,
		"report_document_id": e.ReportDocumentID,
		"report_filed":       e.ReportFiled,
		"next_hearing_at":    e.NextHearingAt,
		"secret":             e.Secret,
		"digital_venue":      e.DigitalVenue,
		"archived":           e.Archived,
		"priority":           e.Priority,
	}
}

// Party is a person or organization named in one or more cases
type Party struct {
	gorm.Model
	Kind            string                `json:"kind" gorm:"not null;index:idx_parties_kind_doc"`
	TaxID           string                `json:"tax_id" gorm:"index:idx_parties_kind_doc"`
	PersonType      string                `json:"person_type"`
	Name            string                `json:"name"`
	ExternalID      int64                 `json:"external_id" gorm:"index"`
	Court           string                `json:"court"`
	Instance        string                `json:"instance"`
	Email           string                `json:"email"`
	Representatives []PartyRepresentative `json:"representatives,omitempty" gorm:"foreignKey:PartyID"`
	PreviousValues  string                `json:"previous_values,omitempty" gorm:"type:text"`
}

func (p *Party) CompareFields() map[string]any {
	return map[string]any{
		"kind":        p.Kind,
		"tax_id":      p.TaxID,
		"person_type": p.PersonType,
		"name":        p.Name,
		"external_id": p.ExternalID,
		"court":       p.Court,
		"instance":    p.Instance,
		"email":       p.Email,
	}
}

// PartyRepresentative is a legal representative (attorney) of a party
type PartyRepresentative struct {
	gorm.Model
	PartyID            uint   `json:"party_id" gorm:"not null;uniqueIndex:idx_representatives_party_doc"`
	TaxID              string `json:"tax_id" gorm:"not null;uniqueIndex:idx_representatives_party_doc"`
	Name               string `json:"name"`
	BarNumber          string `json:"bar_number"`
	BarState           string `json:"bar_state"`
	RepresentativeType string `json:"representative_type"`
	ExternalID         int64  `json:"external_id"`
	PreviousValues     string `json:"previous_values,omitempty" gorm:"type:text"`
}

func (r *PartyRepresentative) CompareFields() map[string]any {
	return map[string]any{
		"party_id":            r.PartyID,
		"tax_id":              r.TaxID,
		"name":                r.Name,
		"bar_number":          r.BarNumber,
		"bar_state":           r.BarState,
		"representative_type": r.RepresentativeType,
		"external_id":         r.ExternalID,
	}
}

// CaseParty links a party to a case with its procedural role and pole
type CaseParty struct {
	gorm.Model
	CaseID         uint   `json:"case_id" gorm:"not null;uniqueIndex:idx_case_parties_link"`
	PartyID        uint   `json:"party_id" gorm:"not null;uniqueIndex:idx_case_parties_link"`
	Role           string `json:"role" gorm:"not null;uniqueIndex:idx_case_parties_link"`
	CaseExternalID int64  `json:"case_external_id"`
	Court          string `json:"court"`
	Instance       string `json:"instance"`
	Pole           string `json:"pole"`
	Kind           string `json:"kind"`
	Principal      bool   `json:"principal"`
	Position       int    `json:"position"`
	PreviousValues string `json:"previous_values,omitempty" gorm:"type:text"`
}

func (c *CaseParty) CompareFields() map[string]any {
	return map[string]any{
		"case_id":          c.CaseID,
		"party_id":         c.PartyID,
		"role":             c.Role,
		"case_external_id": c.CaseExternalID,
		"court":            c.Court,
		"instance":         c.Instance,
		"pole":             c.Pole,
		"kind":             c.Kind,
		"principal":        c.Principal,
		"position":         c.Position,
	}
}

// Timeline stores the whole movement/document sequence of a case as one JSON blob
type Timeline struct {
	gorm.Model
	CaseExternalID int64     `json:"case_external_id" gorm:"not null;uniqueIndex:idx_timelines_natural_key"`
	Court          string    `json:"court" gorm:"not null;uniqueIndex:idx_timelines_natural_key"`
	Instance       string    `json:"instance" gorm:"not null;uniqueIndex:idx_timelines_natural_key"`
	CaseID         *uint     `json:"case_id" gorm:"index"`
	Items          string    `json:"items" gorm:"type:text"`
	ItemCount      int       `json:"item_count"`
	CapturedAt     time.Time `json:"captured_at"`
}

// CourtDivision is a judging body ("órgão julgador")
type CourtDivision struct {
	gorm.Model
	ExternalID  int64  `json:"external_id" gorm:"uniqueIndex:idx_court_divisions_key"`
	Court       string `json:"court" gorm:"uniqueIndex:idx_court_divisions_key"`
	Instance    string `json:"instance" gorm:"uniqueIndex:idx_court_divisions_key"`
	Description string `json:"description" gorm:"index"`
}

// CaseClass is the procedural class of a case
type CaseClass struct {
	gorm.Model
	ExternalID  int64  `json:"external_id" gorm:"uniqueIndex:idx_case_classes_key"`
	Court       string `json:"court" gorm:"uniqueIndex:idx_case_classes_key"`
	Instance    string `json:"instance" gorm:"uniqueIndex:idx_case_classes_key"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

type HearingType struct {
	gorm.Model
	ExternalID  int64  `json:"external_id" gorm:"uniqueIndex:idx_hearing_types_key"`
	Court       string `json:"court" gorm:"uniqueIndex:idx_hearing_types_key"`
	Instance    string `json:"instance" gorm:"uniqueIndex:idx_hearing_types_key"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

type HearingRoom struct {
	gorm.Model
	ExternalID      int64  `json:"external_id"`
	Court           string `json:"court" gorm:"uniqueIndex:idx_hearing_rooms_key"`
	Instance        string `json:"instance" gorm:"uniqueIndex:idx_hearing_rooms_key"`
	CourtDivisionID uint   `json:"court_division_id" gorm:"uniqueIndex:idx_hearing_rooms_key"`
	Name            string `json:"name" gorm:"uniqueIndex:idx_hearing_rooms_key"`
}

// Specialty is a medical/technical specialty of an expert exam
type Specialty struct {
	gorm.Model
	ExternalID  int64  `json:"external_id" gorm:"uniqueIndex:idx_specialties_key"`
	Court       string `json:"court" gorm:"uniqueIndex:idx_specialties_key"`
	Instance    string `json:"instance" gorm:"uniqueIndex:idx_specialties_key"`
	Description string `json:"description"`
}

// ThirdParty holds auxiliary people such as court experts
type ThirdParty struct {
	gorm.Model
	ExternalID int64  `json:"external_id" gorm:"uniqueIndex:idx_third_parties_key"`
	Court      string `json:"court" gorm:"uniqueIndex:idx_third_parties_key"`
	Instance   string `json:"instance" gorm:"uniqueIndex:idx_third_parties_key"`
	Type       string `json:"type" gorm:"uniqueIndex:idx_third_parties_key"`
	Pole       string `json:"pole"`
	Name       string `json:"name"`
	TaxID      string `json:"tax_id"`
}

// Attorney is the capturing attorney
type Attorney struct {
	gorm.Model
	TaxID      string `json:"tax_id" gorm:"uniqueIndex"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

// Credential is a login for one attorney on one court
type Credential struct {
	gorm.Model
	AttorneyID uint   `json:"attorney_id" gorm:"index"`
	CourtID    uint   `json:"court_id" gorm:"index"`
	Login      string `json:"login"`
	Secret     string `json:"-"`
	Active     bool   `json:"active" gorm:"default:true"`
}

// CourtConfig describes how to reach one court instance
type CourtConfig struct {
	gorm.Model
	Code           string `json:"code" gorm:"uniqueIndex:idx_court_configs_key"`
	Instance       string `json:"instance" gorm:"uniqueIndex:idx_court_configs_key"`
	System         string `json:"system"`
	CourtType      string `json:"court_type"`
	BaseURL        string `json:"base_url"`
	LoginURL       string `json:"login_url"`
	APIURL         string `json:"api_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Active         bool   `json:"active" gorm:"default:true"`
}

// CaptureLog is one row per orchestration run
type CaptureLog struct {
	gorm.Model
	RunID         string     `json:"run_id" gorm:"uniqueIndex"`
	Type          string     `json:"type" gorm:"index"`
	AttorneyID    uint       `json:"attorney_id"`
	CredentialIDs string     `json:"credential_ids"`
	CourtID       uint       `json:"court_id"`
	Status        string     `json:"status" gorm:"index"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	Result        string     `json:"result" gorm:"type:text"`
	ErrorText     string     `json:"error_text" gorm:"type:text"`
}

// RawLog keeps the literal upstream payload of one captured unit
type RawLog struct {
	gorm.Model
	RunID          string `json:"run_id" gorm:"index"`
	CaptureType    string `json:"capture_type"`
	Court          string `json:"court"`
	Instance       string `json:"instance"`
	CaseExternalID int64  `json:"case_external_id"`
	Status         string `json:"status"`
	Payload        string `json:"payload" gorm:"type:text"`
	Entries        string `json:"entries" gorm:"type:text"`
	Error          string `json:"error" gorm:"type:text"`
}

func (Case) TableName() string                { return "cases" }
func (Hearing) TableName() string             { return "hearings" }
func (PendingFiling) TableName() string       { return "pending_filings" }
func (ExpertExam) TableName() string          { return "expert_exams" }
func (Party) TableName() string               { return "parties" }
func (PartyRepresentative) TableName() string { return "party_representatives" }
func (CaseParty) TableName() string           { return "case_parties" }
func (Timeline) TableName() string            { return "timelines" }
func (CourtDivision) TableName() string       { return "court_divisions" }
func (CaseClass) TableName() string           { return "case_classes" }
func (HearingType) TableName() string         { return "hearing_types" }
func (HearingRoom) TableName() string         { return "hearing_rooms" }
func (Specialty) TableName() string           { return "specialties" }
func (ThirdParty) TableName() string          { return "third_parties" }
func (Attorney) TableName() string            { return "attorneys" }
func (Credential) TableName() string          { return "credentials" }
func (CourtConfig) TableName() string         { return "court_configs" }
func (CaptureLog) TableName() string          { return "capture_logs" }
func (RawLog) TableName() string              { return "raw_logs" }
