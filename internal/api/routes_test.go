package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealos-proof/backend/internal/ai"
	"dealos-proof/backend/internal/compliance"
)

func newTestServer(t *testing.T, aiCfg ai.Config) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	server, err := NewServer(Config{
		DatabaseURL: filepath.Join(t.TempDir(), "proof.db"),
		SilentDB:    true,
		AIConfig:    aiCfg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	router, err := server.Router()
	require.NoError(t, err)
	return server, router
}

func fakeModel(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"message":"internal"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeVerdict(t *testing.T, rec *httptest.ResponseRecorder) compliance.Verdict {
	t.Helper()
	var verdict compliance.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict), rec.Body.String())
	return verdict
}

func TestComplianceCheckRuleBased(t *testing.T) {
	_, router := newTestServer(t, ai.Config{})

	tests := []struct {
		name   string
		body   string
		status compliance.Status
		forms  int
		alts   int
	}{
		{
			name:   "tied-house",
			body:   `{"title":"Friday Tasting","activation_type":"tasting","description":"We will pay the venue $200 to host our activation"}`,
			status: compliance.StatusBlocked,
			alts:   3,
		},
		{
			name:   "sponsorship",
			body:   `{"title":"Charity 5k Sponsorship","activation_type":"sponsored_event","description":"Standard branded tasting with staff pouring"}`,
			status: compliance.StatusConditional,
			forms:  1,
		},
		{
			name:   "routine",
			body:   `{"title":"Routine Tasting","activation_type":"tasting","description":"Ambassador will present product, bar staff pours all samples"}`,
			status: compliance.StatusCompliant,
		},
		{
			name:   "unknown fields ignored",
			body:   `{"title":"Routine Tasting","description":"staff pours","budget":500}`,
			status: compliance.StatusCompliant,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/compliance-check", tc.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			verdict := decodeVerdict(t, rec)
			assert.Equal(t, tc.status, verdict.ComplianceStatus)
			assert.False(t, verdict.AIPowered)
			assert.Len(t, verdict.RequiredForms, tc.forms)
			assert.Len(t, verdict.LegalAlternatives, tc.alts)
			assert.NotEmpty(t, verdict.Reasoning)
		})
	}
}

func TestComplianceCheckResponseShape(t *testing.T) {
	_, router := newTestServer(t, ai.Config{})
	rec := doJSON(t, router, http.MethodPost, "/api/compliance-check", `{"title":"Routine Tasting","description":"staff pours"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"compliance_status", "reasoning", "required_permits", "required_forms", "suggested_checklist", "legal_alternatives", "ai_powered"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, []any{}, raw["legal_alternatives"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestComplianceCheckBadBody(t *testing.T) {
	_, router := newTestServer(t, ai.Config{})

	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"malformed", `{"title": "oops"`},
		{"wrong shape", `["title"]`},
		{"wrong field type", `{"title": 42}`},
		{"trailing garbage", `{"title":"a","description":"b"} trailing`},
		{"unbalanced", `{"title":"a"}}`},
		{"second object", `{"title":"a"} {"title":"b"}`},
		{"null", "null"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/compliance-check", tc.body)
			require.Equal(t, http.StatusInternalServerError, rec.Code)
			var payload map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

func TestComplianceCheckAIPowered(t *testing.T) {
	reply := `{"compliance_status":"blocked","reasoning":["Free drinks are prohibited."],"required_permits":[],"required_forms":[],"suggested_checklist":["Drop the free drinks"],"legal_alternatives":["Offer a standard tasting"]}`
	srv := fakeModel(t, http.StatusOK, reply)
	_, router := newTestServer(t, ai.Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second})

	rec := doJSON(t, router, http.MethodPost, "/api/compliance-check", `{"title":"Launch","description":"free drinks"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	verdict := decodeVerdict(t, rec)
	assert.True(t, verdict.AIPowered)
	assert.Equal(t, []string{"Free drinks are prohibited."}, verdict.Reasoning)
}

func TestComplianceCheckUpstreamFailureFallsBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
		text   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"empty content", http.StatusOK, ""},
		{"no json", http.StatusOK, "I cannot help with that."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeModel(t, tc.status, tc.text)
			_, router := newTestServer(t, ai.Config{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second})

			rec := doJSON(t, router, http.MethodPost, "/api/compliance-check",
				`{"title":"Friday Tasting","activation_type":"tasting","description":"We will pay the venue $200 to host our activation"}`)
			require.Equal(t, http.StatusOK, rec.Code)
			verdict := decodeVerdict(t, rec)
			assert.False(t, verdict.AIPowered)
			assert.Equal(t, compliance.StatusBlocked, verdict.ComplianceStatus)
			assert.Len(t, verdict.LegalAlternatives, 3)
		})
	}
}

func TestOperationalEndpoints(t *testing.T) {
	_, router := newTestServer(t, ai.Config{})

	rec := doJSON(t, router, http.MethodGet, "/api/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jurisdiction":"VA","ai_enabled":false,"model":"","ruleset_source":"embedded:virginia"}`, rec.Body.String())

	doJSON(t, router, http.MethodPost, "/api/compliance-check", `{"title":"Routine Tasting","description":"staff pours"}`)
	rec = doJSON(t, router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `proof_compliance_checks_total{classifier="rules",status="compliant"} 1`)
	assert.Contains(t, body, `proof_compliance_fallbacks_total{reason="not_configured"} 1`)
	assert.Contains(t, body, `proof_http_requests_total{method="POST",route="/api/compliance-check",status="200"} 1`)
}

func TestCampaignEndpoints(t *testing.T) {
	_, router := newTestServer(t, ai.Config{})

	rec := doJSON(t, router, http.MethodPost, "/api/campaigns", `{"title":"Friday Tasting"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/campaigns",
		`{"brand_name":"Blue Ridge Spirits","title":"Friday Tasting","activation_type":"tasting","venue_name":"The Tap","city":"Richmond","description":"We will pay the venue $200 to host our activation"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created CampaignDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)
	assert.Nil(t, created.Verdict)

	path := "/api/campaigns/" + idPath(created.ID)

	rec = doJSON(t, router, http.MethodPost, path+"/compliance-check", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var check CheckDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &check))
	assert.Equal(t, created.ID, check.CampaignID)
	assert.Equal(t, "blocked", check.ComplianceStatus)
	assert.Equal(t, "rules", check.Classifier)
	assert.Equal(t, "not_configured", check.FallbackReason)
	assert.Equal(t, "VA", check.Jurisdiction)
	assert.Len(t, check.Verdict.LegalAlternatives, 3)
	assert.Len(t, check.ID, 36)

	rec = doJSON(t, router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched CampaignDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "blocked", fetched.ComplianceStatus)
	require.NotNil(t, fetched.Verdict)
	assert.Equal(t, compliance.StatusBlocked, fetched.Verdict.ComplianceStatus)
	require.NotNil(t, fetched.CheckedAt)

	rec = doJSON(t, router, http.MethodGet, path+"/checks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history ChecksResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Items, 1)
	assert.Equal(t, check.ID, history.Items[0].ID)

	rec = doJSON(t, router, http.MethodGet, "/api/campaigns?status=blocked&page=1&pageSize=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list CampaignsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Items, 1)

	rec = doJSON(t, router, http.MethodGet, "/api/campaigns?status=compliant", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(0), list.Total)
	assert.NotNil(t, list.Items)
}

func TestCampaignLookupErrors(t *testing.T) {
	_, router := newTestServer(t, ai.Config{})

	tests := []struct {
		name   string
		path   string
		method string
		code   int
	}{
		{"missing", "/api/campaigns/999", http.MethodGet, http.StatusNotFound},
		{"missing check", "/api/campaigns/999/compliance-check", http.MethodPost, http.StatusNotFound},
		{"bad id", "/api/campaigns/abc", http.MethodGet, http.StatusBadRequest},
		{"zero id", "/api/campaigns/0/checks", http.MethodGet, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, tc.method, tc.path, "")
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestComplianceStream(t *testing.T) {
	server, router := newTestServer(t, ai.Config{})
	httpSrv := httptest.NewServer(router)
	defer httpSrv.Close()

	rec := doJSON(t, router, http.MethodPost, "/api/campaigns", `{"title":"Charity 5k Sponsorship","activation_type":"sponsored_event","description":"Standard branded tasting with staff pouring"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created CampaignDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/api/compliance/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		server.notifier.mu.Lock()
		defer server.notifier.mu.Unlock()
		return len(server.notifier.clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec = doJSON(t, router, http.MethodPost, "/api/campaigns/"+idPath(created.ID)+"/compliance-check", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event CheckEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "check", event.Type)
	assert.Equal(t, created.ID, event.CampaignID)
	assert.Equal(t, "conditional", event.ComplianceStatus)
	assert.False(t, event.AIPowered)
	assert.NotEmpty(t, event.CheckID)

	late, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	var replay CheckEvent
	require.NoError(t, late.ReadJSON(&replay))
	assert.Equal(t, event.CheckID, replay.CheckID)
}

func idPath(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
