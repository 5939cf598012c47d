// Package pje implements the driver for PJE labor-court portals (TRT).
package pje

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/pkg/logger"
)

const (
	System       = "pje"
	CourtTypeTRT = "trt"

	panelGeneral  = "1"
	panelPending  = "2"
	panelArchived = "5"

	defaultPageSize   = 100
	pendingPageSize   = 500
	hearingDateFormat = "2006-01-02"
)

// Options configures every driver the registry builds for PJE courts
type Options struct {
	Authenticator    Authenticator
	Logger           *logger.Logger
	RateLimitBackoff time.Duration
	// Timeout bounds each portal call of courts without their own timeout
	Timeout time.Duration
	Sleep   driver.SleepFunc
}

// Register adds the PJE constructor to reg. Only TRT courts are supported.
func Register(reg *driver.Registry, opts Options) error {
	return reg.Register(System, func(court driver.CourtConfig) (driver.Driver, error) {
		if !strings.EqualFold(strings.TrimSpace(court.CourtType), CourtTypeTRT) {
			return nil, &driver.UnsupportedSystemError{System: court.System, CourtType: court.CourtType}
		}
		return New(opts), nil
	})
}

// Driver opens PJE sessions
type Driver struct {
	auth    Authenticator
	log     *logger.Logger
	backoff time.Duration
	timeout time.Duration
	sleep   driver.SleepFunc
}

func New(opts Options) *Driver {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = driver.Sleep
	}
	backoff := opts.RateLimitBackoff
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Driver{auth: opts.Authenticator, log: log, backoff: backoff, timeout: timeout, sleep: sleep}
}

func (d *Driver) Open(ctx context.Context, cred driver.Credential, court driver.CourtConfig) (driver.Session, error) {
	if d.auth == nil {
		return nil, &driver.AuthenticationError{Court: court.Code, Err: fmt.Errorf("no authenticator configured")}
	}
	if court.Timeout <= 0 {
		court.Timeout = d.timeout
	}

	tokens, err := d.auth.Authenticate(ctx, cred, court)
	if err != nil {
		return nil, err
	}

	return &session{
		api:      newAPIClient(court, tokens, d.backoff, d.sleep),
		attorney: tokens.Attorney,
		tokens:   tokens,
		log:      d.log.With("court", court.Code, "instance", court.Instance),
	}, nil
}

type session struct {
	api      *apiClient
	attorney driver.Attorney
	tokens   *Tokens
	log      *logger.Logger
}

func (s *session) Attorney() driver.Attorney { return s.attorney }

func (s *session) panelPath() string {
	return "/paineladvogado/" + s.attorney.ExternalID + "/processos"
}

func pageQuery(page, size int) map[string]string {
	return map[string]string{
		"pagina":        strconv.Itoa(page),
		"tamanhoPagina": strconv.Itoa(size),
	}
}

func (s *session) ListCases(ctx context.Context, filter driver.CaseListFilter, page int) (driver.Page[driver.CaseSummary], error) {
	panel := panelGeneral
	if filter.Origin == driver.OriginArchived {
		panel = panelArchived
	}
	size := filter.PageSize
	if size <= 0 {
		size = defaultPageSize
	}

	q := pageQuery(page, size)
	q["tipoPainelAdvogado"] = panel
	q["idPainelAdvogadoEnum"] = panel
	q["ordenacaoCrescente"] = "false"

	var out driver.Page[driver.CaseSummary]
	if err := s.api.getJSON(ctx, s.panelPath(), q, &out); err != nil {
		return out, err
	}
	s.log.Debug("Fetched case panel page", "panel", panel, "page", page, "records", len(out.Records), "pages", out.TotalPages)
	return out, nil
}

func (s *session) ListHearings(ctx context.Context, filter driver.HearingFilter, page int) (driver.Page[driver.Hearing], error) {
	q := map[string]string{
		"dataInicio":     filter.From.In(driver.PortalLocation()).Format(hearingDateFormat),
		"dataFim":        filter.To.In(driver.PortalLocation()).Format(hearingDateFormat),
		"numeroPagina":   strconv.Itoa(page),
		"tamanhoPagina":  strconv.Itoa(defaultPageSize),
		"codigoSituacao": filter.Status,
		"ordenacao":      "asc",
	}

	var out driver.Page[driver.Hearing]
	if err := s.api.getJSON(ctx, "/pauta-usuarios-externos", q, &out); err != nil {
		return out, err
	}
	s.log.Debug("Fetched hearing agenda page", "status", filter.Status, "page", page, "records", len(out.Records))
	return out, nil
}

func (s *session) ListPendingFilings(ctx context.Context, filter driver.PendingFilter, page int) (driver.Page[driver.PendingFiling], error) {
	size := filter.PageSize
	if size <= 0 {
		size = pendingPageSize
	}

	q := pageQuery(page, size)
	q["agrupadorExpediente"] = filter.DeadlineFilter
	q["tipoPainelAdvogado"] = panelPending
	q["idPainelAdvogadoEnum"] = panelPending
	q["ordenacaoCrescente"] = "false"

	var out driver.Page[driver.PendingFiling]
	if err := s.api.getJSON(ctx, s.panelPath(), q, &out); err != nil {
		return out, err
	}
	for i := range out.Records {
		out.Records[i].DeadlineFilter = filter.DeadlineFilter
	}
	return out, nil
}

func (s *session) ListExpertExams(ctx context.Context, page int) (driver.Page[driver.ExpertExam], error) {
	var out driver.Page[driver.ExpertExam]
	err := s.api.getJSON(ctx, "/pericias", pageQuery(page, defaultPageSize), &out)
	return out, err
}

func (s *session) ListTimeline(ctx context.Context, caseID int64) ([]driver.TimelineItem, error) {
	q := map[string]string{
		"somenteDocumentosAssinados": "false",
		"buscarMovimentos":           "true",
		"buscarDocumentos":           "true",
	}
	var items []driver.TimelineItem
	endpoint := fmt.Sprintf("/processos/id/%d/timeline", caseID)
	if err := s.api.getJSON(ctx, endpoint, q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *session) ListParties(ctx context.Context, caseID int64) (*driver.PartiesPayload, error) {
	endpoint := fmt.Sprintf("/processos/id/%d/partes", caseID)
	resp, err := s.api.get(ctx, endpoint, nil, 404)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == 404 {
		s.log.Debug("Case has no parties endpoint", "case_id", caseID)
		return &driver.PartiesPayload{}, nil
	}

	parties, err := ParseParties(resp.Body())
	if err != nil {
		return nil, err
	}
	return &driver.PartiesPayload{Parties: parties, Raw: resp.Body()}, nil
}

func (s *session) DownloadDocument(ctx context.Context, caseID, documentID int64) (*driver.Document, error) {
	endpoint := fmt.Sprintf("/processos/id/%d/documentos/%d/conteudo", caseID, documentID)
	resp, err := s.api.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &driver.Document{
		Name:        fileName(resp.Header().Get("Content-Disposition"), fmt.Sprintf("documento-%d.pdf", documentID)),
		ContentType: contentType,
		Data:        resp.Body(),
	}, nil
}

func (s *session) Close() error {
	if s.tokens == nil || s.tokens.Closer == nil {
		return nil
	}
	return s.tokens.Closer.Close()
}
