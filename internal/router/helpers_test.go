package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	billingHandler "github.com/jwalitptl/clinic-finance/internal/handler/billing"
	"github.com/jwalitptl/clinic-finance/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-finance/internal/handler/patient"
	paymentHandler "github.com/jwalitptl/clinic-finance/internal/handler/payment"
	planHandler "github.com/jwalitptl/clinic-finance/internal/handler/plan"
	templateHandler "github.com/jwalitptl/clinic-finance/internal/handler/template"
	"github.com/jwalitptl/clinic-finance/internal/middleware"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository/memory"
	"github.com/jwalitptl/clinic-finance/internal/router"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	billingService "github.com/jwalitptl/clinic-finance/internal/service/billing"
	patientService "github.com/jwalitptl/clinic-finance/internal/service/patient"
	paymentService "github.com/jwalitptl/clinic-finance/internal/service/payment"
	planService "github.com/jwalitptl/clinic-finance/internal/service/plan"
	templateService "github.com/jwalitptl/clinic-finance/internal/service/template"
	"github.com/jwalitptl/clinic-finance/pkg/auth"
	"github.com/jwalitptl/clinic-finance/pkg/invoice"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/mailer"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

const testSecret = "test-secret"

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type stubRenderer struct {
	last *invoice.Request
}

func (r *stubRenderer) Render(_ context.Context, req *invoice.Request) (*invoice.Document, error) {
	r.last = req
	return &invoice.Document{ContentType: "application/pdf", Body: []byte("%PDF-1.4 test")}, nil
}

type stubMailer struct {
	sent []*mailer.Message
}

func (m *stubMailer) Send(msg *mailer.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type testServer struct {
	t        *testing.T
	engine   http.Handler
	store    *memory.Store
	renderer *stubRenderer
	mail     *stubMailer
	tokens   *auth.TokenValidator
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	log := logger.Nop()
	auditor := audit.NewService(store.Audit(), log)
	renderer := &stubRenderer{}
	mail := &stubMailer{}

	billingSvc := billingService.NewService(billingService.Config{ClinicName: "Sunrise Physio"}, billingService.Deps{
		Patients: store.Patients(),
		Plans:    store.Plans(),
		Payments: store.Payments(),
		Outbox:   store.Outbox(),
		Renderer: renderer,
		Mailer:   mail,
		Auditor:  auditor,
		Metrics:  m,
		Logger:   log,
	})

	tokens := auth.NewTokenValidator(testSecret, "", "")
	r := router.NewRouter(
		middleware.NewAuthMiddleware(tokens),
		health.NewHandler(okPinger{}),
		m,
		reg,
		router.RouterConfig{
			CORSConfig: middleware.DefaultCORSConfig(),
			WriteRoles: []string{"billing"},
		},
		patientHandler.NewHandler(patientService.NewService(store.Patients(), auditor)),
		templateHandler.NewHandler(templateService.NewService(store.Templates(), auditor)),
		planHandler.NewHandler(planService.NewService(store.Plans(), store.Templates(), store.Patients(), auditor, m, log)),
		paymentHandler.NewHandler(paymentService.NewService(store.Payments(), store.Patients(), auditor)),
		billingHandler.NewHandler(billingSvc),
	)
	r.Setup()

	s := &testServer{t: t, engine: r.Engine(), store: store, renderer: renderer, mail: mail, tokens: tokens}
	s.token = s.sign("staff-1", "billing")
	return s
}

func (s *testServer) sign(subject string, roles ...string) string {
	s.t.Helper()
	token, err := s.tokens.Sign(model.Claims{Subject: subject, Email: subject + "@clinic.test", Roles: roles}, time.Hour)
	require.NoError(s.t, err)
	return token
}

// TestResponse mirrors the API envelope.
type TestResponse struct {
	Code    int
	Status  string
	Message string
	Data    map[string]interface{}
	RawData json.RawMessage
	Header  http.Header
	Body    []byte
}

func (r TestResponse) IsSuccess() bool {
	return r.Status == "success"
}

func (r TestResponse) GetString(key string) string {
	if v, ok := r.Data[key].(string); ok {
		return v
	}
	return ""
}

func (s *testServer) makeRequest(method, path string, body interface{}, token string) TestResponse {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	resp := TestResponse{Code: w.Code, Header: w.Header(), Body: w.Body.Bytes()}
	if w.Header().Get("Content-Type") != "application/pdf" {
		var envelope struct {
			Status  string          `json:"status"`
			Message string          `json:"message"`
			Data    json.RawMessage `json:"data"`
		}
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
		resp.Status = envelope.Status
		resp.Message = envelope.Message
		resp.RawData = envelope.Data
		_ = json.Unmarshal(envelope.Data, &resp.Data)
	}
	return resp
}
