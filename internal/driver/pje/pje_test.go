package pje

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type staticAuth struct {
	tokens *Tokens
	err    error
}

func (a staticAuth) Authenticate(context.Context, driver.Credential, driver.CourtConfig) (*Tokens, error) {
	return a.tokens, a.err
}

type countingCloser struct{ n int }

func (c *countingCloser) Close() error {
	c.n++
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func openTestSession(t *testing.T, handler http.Handler) (driver.Session, *countingCloser) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	closer := &countingCloser{}
	d := New(Options{
		Authenticator: staticAuth{tokens: &Tokens{
			AccessToken: "token-abc",
			XSRFToken:   "xsrf-abc",
			Attorney:    driver.Attorney{ExternalID: "77", TaxID: "12345678901", Name: "Dra. Teste"},
			Closer:      closer,
		}},
		Sleep: noSleep,
	})
	s, err := d.Open(context.Background(), driver.Credential{Login: "12345678901"}, driver.CourtConfig{
		System:    System,
		CourtType: CourtTypeTRT,
		Code:      "TRT3",
		Instance:  driver.FirstInstance,
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
	})
	require.NoError(t, err)
	return s, closer
}

func TestListCasesSendsPanelQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pje-comum-api/api/paineladvogado/77/processos", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		require.Equal(t, "xsrf-abc", r.Header.Get("X-XSRF-Token"))
		require.Equal(t, "5", r.URL.Query().Get("tipoPainelAdvogado"))
		require.Equal(t, "2", r.URL.Query().Get("pagina"))
		require.Equal(t, "100", r.URL.Query().Get("tamanhoPagina"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pagina":2,"tamanhoPagina":100,"qtdPaginas":2,"totalRegistros":101,
			"resultado":[{"id":20,"numeroProcesso":"0001-20","numero":1,"segredoDeJustica":false,"dataArquivamento":"2024-01-10T09:00:00"}]}`))
	})

	s, _ := openTestSession(t, mux)
	page, err := s.ListCases(context.Background(), driver.CaseListFilter{Origin: driver.OriginArchived}, 2)
	require.NoError(t, err)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Records, 1)
	require.Equal(t, int64(20), page.Records[0].ID)
	require.Equal(t, "0001-20", page.Records[0].CaseNumber)
	require.False(t, page.Records[0].ArchivedAt.IsZero())
}

func TestListHearingsQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pje-comum-api/api/pauta-usuarios-externos", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "2024-05-01", q.Get("dataInicio"))
		require.Equal(t, "2025-05-01", q.Get("dataFim"))
		require.Equal(t, "M", q.Get("codigoSituacao"))
		require.Equal(t, "1", q.Get("numeroPagina"))
		require.Equal(t, "asc", q.Get("ordenacao"))
		_, _ = w.Write([]byte(`{"pagina":1,"qtdPaginas":1,"resultado":[{"id":5,"idProcesso":10,"nrProcesso":"0001-10","status":"M","processo":{"id":10,"numero":"0001-10"}}]}`))
	})

	s, _ := openTestSession(t, mux)
	loc := driver.PortalLocation()
	page, err := s.ListHearings(context.Background(), driver.HearingFilter{
		From:   time.Date(2024, 5, 1, 12, 0, 0, 0, loc),
		To:     time.Date(2025, 5, 1, 12, 0, 0, 0, loc),
		Status: "M",
	}, 1)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.Equal(t, int64(10), page.Records[0].OwnerID())
}

func TestListPendingFilingsTagsDeadlineFilter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pje-comum-api/api/paineladvogado/77/processos", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "I", r.URL.Query().Get("agrupadorExpediente"))
		require.Equal(t, "500", r.URL.Query().Get("tamanhoPagina"))
		_, _ = w.Write([]byte(`{"qtdPaginas":1,"resultado":[{"id":1,"idProcesso":10},{"id":2,"idProcesso":11}]}`))
	})

	s, _ := openTestSession(t, mux)
	page, err := s.ListPendingFilings(context.Background(), driver.PendingFilter{DeadlineFilter: driver.DeadlineWithout}, 1)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	for _, p := range page.Records {
		require.Equal(t, driver.DeadlineWithout, p.DeadlineFilter)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{
			name:   "validation",
			status: http.StatusBadRequest,
			check: func(t *testing.T, err error) {
				var v *driver.ValidationError
				require.ErrorAs(t, err, &v)
				require.Equal(t, http.StatusBadRequest, v.Status)
			},
		},
		{
			name:   "unprocessable",
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, err error) {
				var v *driver.ValidationError
				require.ErrorAs(t, err, &v)
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				require.True(t, driver.IsFatal(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				require.ErrorContains(t, err, "unexpected status 502")
				require.False(t, driver.IsFatal(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := openTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"mensagem":"erro"}`))
			}))
			_, err := s.ListTimeline(context.Background(), 10)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRateLimitedCallIsRetriedOnce(t *testing.T) {
	calls := 0
	s, _ := openTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"titulo":"Petição inicial","documento":true,"data":"2024-01-02T10:00:00"}]`))
	}))

	items, err := s.ListTimeline(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, items, 1)
	require.True(t, bool(items[0].Document))
}

func TestRateLimitedTwiceFails(t *testing.T) {
	calls := 0
	s, _ := openTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := s.ListTimeline(context.Background(), 10)
	var limited *driver.RateLimitedError
	require.ErrorAs(t, err, &limited)
	require.Equal(t, 2, calls)
}

func TestListPartiesNotFoundIsEmpty(t *testing.T) {
	s, _ := openTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	payload, err := s.ListParties(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, payload.Parties)
	require.Nil(t, payload.Raw)
}

func TestListPartiesKeepsRawBody(t *testing.T) {
	body := `[{"id":1,"nome":"Maria","polo":"POLO_ATIVO","tipo":"RECLAMANTE","documento":"123.456.789-01"}]`
	s, _ := openTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))

	payload, err := s.ListParties(context.Background(), 10)
	require.NoError(t, err)
	require.JSONEq(t, body, string(payload.Raw))
	require.Len(t, payload.Parties, 1)
	require.Equal(t, driver.PoleActive, payload.Parties[0].Pole)
}

func TestDownloadDocument(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/pje-comum-api/api/processos/id/10/documentos/99/conteudo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="ata.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	s, _ := openTestSession(t, mux)
	doc, err := s.DownloadDocument(context.Background(), 10, 99)
	require.NoError(t, err)
	require.Equal(t, "ata.pdf", doc.Name)
	require.Equal(t, "application/pdf", doc.ContentType)
	require.Equal(t, []byte("%PDF-1.4"), doc.Data)
}

func TestSessionCloseReleasesBrowser(t *testing.T) {
	s, closer := openTestSession(t, http.NotFoundHandler())
	require.NoError(t, s.Close())
	require.Equal(t, 1, closer.n)
}

func TestRegisterRejectsOtherCourtTypes(t *testing.T) {
	reg := driver.NewRegistry()
	require.NoError(t, Register(reg, Options{}))

	_, err := reg.Resolve(driver.CourtConfig{System: "PJE", CourtType: "trt"})
	require.NoError(t, err)

	for _, courtType := range []string{"tj", "tst"} {
		_, err := reg.Resolve(driver.CourtConfig{System: "pje", CourtType: courtType})
		var unsupported *driver.UnsupportedSystemError
		require.ErrorAs(t, err, &unsupported)
		require.Equal(t, courtType, unsupported.CourtType)
		require.ErrorIs(t, err, driver.ErrNotImplemented)
	}
}

func TestOpenWithoutAuthenticatorFails(t *testing.T) {
	_, err := New(Options{}).Open(context.Background(), driver.Credential{}, driver.CourtConfig{Code: "TRT3"})
	var auth *driver.AuthenticationError
	require.ErrorAs(t, err, &auth)
}

func TestAttorneyFromJWT(t *testing.T) {
	claims, err := json.Marshal(map[string]any{"id": 987654, "cpf": "12345678901", "name": "Dra. Teste"})
	require.NoError(t, err)
	token := "eyJhbGciOiJub25lIn0." + base64.RawURLEncoding.EncodeToString(claims) + ".sig"

	got, err := attorneyFromJWT(token)
	require.NoError(t, err)
	want := driver.Attorney{ExternalID: "987654", TaxID: "12345678901", Name: "Dra. Teste"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatal(diff)
	}

	_, err = attorneyFromJWT("not-a-jwt")
	require.Error(t, err)
}

func TestOnSSOHost(t *testing.T) {
	require.True(t, onSSOHost("https://sso.cloud.pje.jus.br/auth/realms/pje/login-actions"))
	require.False(t, onSSOHost("https://pje.trt3.jus.br/pjekz/painel"))
}

type recordingAuth struct {
	court driver.CourtConfig
}

func (a *recordingAuth) Authenticate(_ context.Context, _ driver.Credential, court driver.CourtConfig) (*Tokens, error) {
	a.court = court
	return &Tokens{AccessToken: "token"}, nil
}

func TestOpenAppliesDefaultTimeout(t *testing.T) {
	auth := &recordingAuth{}
	d := New(Options{Authenticator: auth, Timeout: 15 * time.Second})

	s, err := d.Open(context.Background(), driver.Credential{}, driver.CourtConfig{Code: "TRT3", BaseURL: "https://pje.trt3.jus.br"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Equal(t, 15*time.Second, auth.court.Timeout)

	_, err = d.Open(context.Background(), driver.Credential{}, driver.CourtConfig{Code: "TRT3", BaseURL: "https://pje.trt3.jus.br", Timeout: time.Minute})
	require.NoError(t, err)
	require.Equal(t, time.Minute, auth.court.Timeout)

	_, err = New(Options{Authenticator: auth}).Open(context.Background(), driver.Credential{}, driver.CourtConfig{Code: "TRT3"})
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, auth.court.Timeout)
}

func TestPollLoginResult(t *testing.T) {
	calls := 0
	rejected, err := pollLoginResult(context.Background(), time.Millisecond, func() (bool, bool) {
		calls++
		return calls == 3, false
	})
	require.NoError(t, err)
	require.False(t, rejected)
	require.Equal(t, 3, calls)

	rejected, err = pollLoginResult(context.Background(), time.Millisecond, func() (bool, bool) { return false, true })
	require.NoError(t, err)
	require.True(t, rejected)

	// a page that never settles gives up once the call deadline passes
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pollLoginResult(ctx, time.Millisecond, func() (bool, bool) { return false, false })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBrowserAuthenticatorLoggerIsNotMutated(t *testing.T) {
	a := &BrowserAuthenticator{}
	require.NotNil(t, a.log())
	require.Nil(t, a.Logger)
}
