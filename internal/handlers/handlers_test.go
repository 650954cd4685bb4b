package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-brokerage/internal/config"
	"github.com/sjperalta/fintera-brokerage/internal/events"
	"github.com/sjperalta/fintera-brokerage/internal/jobs"
	"github.com/sjperalta/fintera-brokerage/internal/middleware"
	"github.com/sjperalta/fintera-brokerage/internal/models"
	"github.com/sjperalta/fintera-brokerage/internal/repository"
	"github.com/sjperalta/fintera-brokerage/internal/services"
	"github.com/sjperalta/fintera-brokerage/internal/storage"
	"github.com/sjperalta/fintera-brokerage/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	admin  string
	agent  string
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Discard()

	worker := jobs.NewWorker(1)
	t.Cleanup(worker.Shutdown)

	cfg := &config.Config{
		Currency:              "USD",
		DefaultCommissionRate: decimal.NewFromInt(2),
		AgencyID:              "agency",
	}
	clock := func() time.Time { return time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC) }
	svcs := services.NewServices(repository.NewRepositories(repository.NewMemoryStore()), events.NewBus(), worker, cfg, clock)

	receipts, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	router := gin.New()
	NewHandlers(svcs, receipts).Register(router.Group("/api/v1"), testSecret)

	admin, err := middleware.IssueToken(testSecret, "admin-1", models.RoleAdmin, "")
	require.NoError(t, err)
	agent, err := middleware.IssueToken(testSecret, "agent-listing", models.RoleAgent, "")
	require.NoError(t, err)

	return &apiClient{t: t, router: router, admin: admin, agent: agent}
}

func (a *apiClient) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, key string, out interface{}) {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	raw, ok := body[key]
	require.True(t, ok, "response has no %q: %s", key, w.Body.String())
	require.NoError(t, json.Unmarshal(raw, out))
}

// openCycle registers a property and opens a sell cycle on it
func (a *apiClient) openCycle() *models.Cycle {
	a.t.Helper()
	w := a.do(http.MethodPost, "/properties", a.agent, gin.H{
		"property": gin.H{"address": "12 Harbour Road", "area": "120", "owner": "Maria Lopez"},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var property models.Property
	decodeInto(a.t, w, "property", &property)

	w = a.do(http.MethodPost, "/properties/"+property.ID+"/cycles", a.agent, gin.H{"kind": "sell", "asking_price": "300000"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var cycle models.Cycle
	decodeInto(a.t, w, "cycle", &cycle)
	return &cycle
}

func (a *apiClient) acceptExternalOffer(cycleID string) *models.Deal {
	a.t.Helper()
	w := a.do(http.MethodPost, "/cycles/"+cycleID+"/offers", a.agent, gin.H{
		"buyer":        gin.H{"name": "Jane Buyer"},
		"offer_amount": "290000",
		"token_amount": "10000",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var offer models.Offer
	decodeInto(a.t, w, "offer", &offer)

	w = a.do(http.MethodPost, "/offers/"+offer.ID+"/accept", a.agent, gin.H{"closing_date": "2024-05-01"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var deal models.Deal
	decodeInto(a.t, w, "deal", &deal)
	return &deal
}

func TestHealthIsPublic(t *testing.T) {
	api := newAPI(t)
	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/properties", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitOffer_TokenAboveOfferIsUnprocessable(t *testing.T) {
	api := newAPI(t)
	cycle := api.openCycle()

	w := api.do(http.MethodPost, "/cycles/"+cycle.ID+"/offers", api.agent, gin.H{
		"buyer":        gin.H{"name": "Jane Buyer"},
		"offer_amount": "100000",
		"token_amount": "150000",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "token amount")

	w = api.do(http.MethodGet, "/cycles/"+cycle.ID+"/offers", api.agent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var offers []models.Offer
	decodeInto(t, w, "offers", &offers)
	assert.Empty(t, offers)
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	api := newAPI(t)
	cycle := api.openCycle()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cycles/"+cycle.ID+"/offers", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+api.agent)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAcceptOfferFinalizesDeal(t *testing.T) {
	api := newAPI(t)
	cycle := api.openCycle()
	deal := api.acceptExternalOffer(cycle.ID)

	assert.Equal(t, models.DealStatusActive, deal.Status)
	assert.Equal(t, models.MatchKindExternal, deal.MatchKind)
	require.Len(t, deal.Commission.Entries, 1)
	assert.True(t, decimal.NewFromInt(5800).Equal(deal.Commission.Total))

	w := api.do(http.MethodGet, "/deals/"+deal.ID, api.agent, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// finalize again returns the same deal
	w = api.do(http.MethodPost, "/offers/"+deal.OfferID+"/finalize", api.agent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var again models.Deal
	decodeInto(t, w, "deal", &again)
	assert.Equal(t, deal.ID, again.ID)
}

func TestCommissionActionsRequireAdmin(t *testing.T) {
	api := newAPI(t)
	deal := api.acceptExternalOffer(api.openCycle().ID)
	entryID := deal.Commission.Entries[0].ID

	w := api.do(http.MethodPost, "/commissions/"+entryID+"/approve", api.agent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/commissions/"+entryID+"/approve", api.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entry models.CommissionSplitEntry
	decodeInto(t, w, "entry", &entry)
	assert.Equal(t, models.CommissionStatusApproved, entry.Status)
	assert.Equal(t, "admin-1", entry.ApprovedBy)

	w = api.do(http.MethodPost, "/commissions/"+entryID+"/reject", api.admin, gin.H{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBulkApproveReportsEachEntry(t *testing.T) {
	api := newAPI(t)
	deal := api.acceptExternalOffer(api.openCycle().ID)
	entryID := deal.Commission.Entries[0].ID

	w := api.do(http.MethodPost, "/commissions/bulk/approve", api.admin, gin.H{"entry_ids": []string{entryID, "missing"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Results   []struct {
			EntryID string `json:"entry_id"`
			OK      bool   `json:"ok"`
			Status  int    `json:"status"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Succeeded)
	assert.Equal(t, 1, body.Failed)
	require.Len(t, body.Results, 2)
	assert.True(t, body.Results[0].OK)
	assert.Equal(t, http.StatusNotFound, body.Results[1].Status)

	w = api.do(http.MethodPost, "/commissions/bulk/explode", api.admin, gin.H{"entry_ids": []string{entryID}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleRejectsOverpayment(t *testing.T) {
	api := newAPI(t)
	deal := api.acceptExternalOffer(api.openCycle().ID)

	w := api.do(http.MethodPost, "/deals/"+deal.ID+"/schedule", api.agent, gin.H{"count": 2, "first_due_date": "2024-04-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var schedule models.PaymentScheduleResponse
	decodeInto(t, w, "schedule", &schedule)
	require.Len(t, schedule.Instalments, 2)
	assert.True(t, decimal.NewFromInt(290000).Equal(schedule.Total))

	w = api.do(http.MethodPost, "/deals/"+deal.ID+"/schedule", api.agent, gin.H{"count": 2, "first_due_date": "2024-04-01"})
	assert.Equal(t, http.StatusConflict, w.Code)

	first := schedule.Instalments[0]
	path := "/schedules/" + schedule.ID + "/instalments/" + first.ID + "/payments"
	w = api.do(http.MethodPost, path, api.agent, gin.H{"amount": first.Amount.Add(decimal.NewFromInt(1)), "payment_date": "2024-03-10"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodPost, path, api.agent, gin.H{"amount": "1000", "payment_date": "2024-03-10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeInto(t, w, "schedule", &schedule)
	assert.Equal(t, models.InstalmentStatusPartial, schedule.Instalments[0].Status)
}

func TestUnknownResourcesAreNotFound(t *testing.T) {
	api := newAPI(t)
	for _, path := range []string{"/deals/nope", "/offers/nope", "/cycles/nope", "/schedules/nope", "/properties/nope"} {
		w := api.do(http.MethodGet, path, api.agent, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestAdminRoutes(t *testing.T) {
	api := newAPI(t)

	w := api.do(http.MethodGet, "/audits", api.agent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	api.openCycle()
	w = api.do(http.MethodGet, "/audits", api.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var audits []models.AuditLog
	decodeInto(t, w, "audits", &audits)
	assert.NotEmpty(t, audits)

	w = api.do(http.MethodGet, "/jobs/status", api.admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/jobs/overdue_sweep?async=true", api.admin, nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = api.do(http.MethodPost, "/jobs/overdue_sweep?async=true", api.agent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCloseCycleWithActiveDealIsConflict(t *testing.T) {
	api := newAPI(t)
	cycle := api.openCycle()
	deal := api.acceptExternalOffer(cycle.ID)

	w := api.do(http.MethodPost, "/cycles/"+cycle.ID+"/close", api.agent, gin.H{"outcome": "lost"})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/deals/"+deal.ID+"/cancel", api.agent, gin.H{"reason": "buyer withdrew"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.do(http.MethodPost, "/cycles/"+cycle.ID+"/close", api.agent, gin.H{"outcome": "lost"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "the cancelled deal already closed the cycle")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrValidation, http.StatusUnprocessableEntity},
		{services.ErrInvalidState, http.StatusUnprocessableEntity},
		{services.ErrConsistency, http.StatusUnprocessableEntity},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrConflict, http.StatusConflict},
		{services.ErrForbidden, http.StatusForbidden},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestCommissionsReport(t *testing.T) {
	api := newAPI(t)
	deal := api.acceptExternalOffer(api.openCycle().ID)

	w := api.do(http.MethodGet, "/reports/commissions_csv?start_date=2024-03-01", api.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), deal.ID)

	w = api.do(http.MethodGet, "/reports/commissions_csv?start_date=march", api.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/reports/commissions_csv", api.agent, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (a *apiClient) uploadReceipt(scheduleID, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="receipt"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(a.t, err)
	_, err = part.Write(data)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules/"+scheduleID+"/receipts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+a.agent)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestReceiptUploadAndDownload(t *testing.T) {
	api := newAPI(t)
	deal := api.acceptExternalOffer(api.openCycle().ID)

	w := api.do(http.MethodPost, "/deals/"+deal.ID+"/schedule", api.agent, gin.H{"count": 1, "first_due_date": "2024-04-01"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var schedule models.PaymentScheduleResponse
	decodeInto(t, w, "schedule", &schedule)

	w = api.uploadReceipt(schedule.ID, "notes.html", "text/html", []byte("<p>hi</p>"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.uploadReceipt("missing", "receipt.pdf", "application/pdf", []byte("%PDF"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.uploadReceipt(schedule.ID, "receipt.pdf", "application/pdf", []byte("%PDF-1.4 receipt"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ref string
	decodeInto(t, w, "receipt_ref", &ref)
	assert.Contains(t, ref, "receipts/"+schedule.ID+"/")

	first := schedule.Instalments[0]
	w = api.do(http.MethodPost, "/schedules/"+schedule.ID+"/instalments/"+first.ID+"/payments", api.agent,
		gin.H{"amount": "1000", "payment_date": "2024-03-10", "receipt_ref": ref})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/schedules/"+schedule.ID+"/receipts?ref="+url.QueryEscape(ref), api.agent, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 receipt", w.Body.String())

	w = api.do(http.MethodGet, "/schedules/other/receipts?ref="+url.QueryEscape(ref), api.agent, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
