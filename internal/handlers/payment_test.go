package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/payments-app/internal/models"
	"github.com/diewo77/payments-app/internal/services"
	"github.com/diewo77/payments-app/internal/store"
)

func setupHandler(t *testing.T) *PaymentHandler {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Payment{}, &models.EvidenceFile{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc := services.NewPaymentService(store.New(db))
	svc.Now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return NewPaymentHandler(svc)
}

const createBody = `{
	"payee_first_name": "Alice",
	"payee_last_name": "Smith",
	"payee_address_line_1": "1 Main St",
	"payee_city": "Paris",
	"payee_country": "FR",
	"payee_postal_code": "75000",
	"payee_phone_number": "+3300000000",
	"payee_email": "alice@example.com",
	"currency": "EUR",
	"due_amount": 100,
	"discount_percent": 10,
	"tax_percent": 5,
	"payee_due_date": "2099-09-15T00:00:00Z"
}`

func createPayment(t *testing.T, h *PaymentHandler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment", strings.NewReader(createBody))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201 got %d body %s", rec.Code, rec.Body.String())
	}
	var id string
	if err := json.NewDecoder(rec.Body).Decode(&id); err != nil {
		t.Fatalf("decode id: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty id")
	}
	return id
}

func TestCreateAndGet(t *testing.T) {
	h := setupHandler(t)
	id := createPayment(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/"+id, nil)
	req.SetPathValue("payment_id", id)
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200 got %d body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type got %q", ct)
	}
	var p models.Payment
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode payment: %v", err)
	}
	if p.ID != id || p.PayeeFirstName != "Alice" {
		t.Fatalf("unexpected record: %+v", p)
	}
	// 100 * 0.9 * 1.05
	if p.TotalDue != 94.5 {
		t.Fatalf("expected total_due 94.5 got %v", p.TotalDue)
	}
	if p.PayeePaymentStatus != models.StatusPending {
		t.Fatalf("future due date should read pending, got %s", p.PayeePaymentStatus)
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	h := setupHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_json") {
		t.Fatalf("expected invalid_json error, got %s", rec.Body.String())
	}
}

func TestCreateValidationFailure(t *testing.T) {
	h := setupHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment",
		strings.NewReader(`{"payee_first_name":"Alice","due_amount":-5}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error != "validation_failed" {
		t.Fatalf("expected validation_failed got %q", resp.Error)
	}
	if resp.Details["due_amount"] != "must_be_non_negative" || resp.Details["payee_email"] != "required" {
		t.Fatalf("unexpected violations: %v", resp.Details)
	}
}

func TestGetNotFound(t *testing.T) {
	h := setupHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/nope", nil)
	req.SetPathValue("payment_id", "nope")
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not_found") {
		t.Fatalf("expected not_found body, got %s", rec.Body.String())
	}
}

func TestUpdatePartialFields(t *testing.T) {
	h := setupHandler(t)
	id := createPayment(t, h)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/payment/"+id,
		strings.NewReader(`{"payee_city":"Lyon","due_amount":200,"id":"hijack"}`))
	req.SetPathValue("payment_id", id)
	rec := httptest.NewRecorder()
	h.Update(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200 got %d body %s", rec.Code, rec.Body.String())
	}
	var p models.Payment
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID != id {
		t.Fatalf("id must be immutable, got %s", p.ID)
	}
	if p.PayeeCity != "Lyon" || p.DueAmount != 200 {
		t.Fatalf("fields not applied: %+v", p)
	}
	// Untouched fields survive.
	if p.PayeeEmail != "alice@example.com" {
		t.Fatalf("merge clobbered email: %+v", p)
	}
}

func TestUpdateNotFound(t *testing.T) {
	h := setupHandler(t)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/payment/nope",
		strings.NewReader(`{"payee_city":"Lyon"}`))
	req.SetPathValue("payment_id", "nope")
	rec := httptest.NewRecorder()
	h.Update(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestDeleteResponseAndRepeat(t *testing.T) {
	h := setupHandler(t)
	id := createPayment(t, h)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/payment/"+id, nil)
	req.SetPathValue("payment_id", id)
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200 got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "success" || body["message"] != "Payment deleted successfully" {
		t.Fatalf("unexpected delete body: %v", body)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/payment/"+id, nil)
	req.SetPathValue("payment_id", id)
	rec = httptest.NewRecorder()
	h.Delete(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404 got %d", rec.Code)
	}
}

func TestListDefaultsAndClamp(t *testing.T) {
	h := setupHandler(t)
	createPayment(t, h)

	// page_size out of range falls back to the default 50.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?page_size=500&page=0", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d body %s", rec.Code, rec.Body.String())
	}
	var result services.PaginatedPayments
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Page != 1 || result.PageSize != 50 {
		t.Fatalf("expected defaults page=1 page_size=50, got %+v", result)
	}
	if result.Total != 1 || len(result.Items) != 1 {
		t.Fatalf("expected single row, got %+v", result)
	}
}

func TestListItemsNeverNull(t *testing.T) {
	h := setupHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"items":[]`) {
		t.Fatalf("empty list must serialize items as [], got %s", rec.Body.String())
	}
}

func uploadEvidence(t *testing.T, h *PaymentHandler, paymentID, filename string, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/"+paymentID+"/upload_evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("payment_id", paymentID)
	rec := httptest.NewRecorder()
	h.UploadEvidence(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201 got %d body %s", rec.Code, rec.Body.String())
	}
	var id string
	if err := json.NewDecoder(rec.Body).Decode(&id); err != nil {
		t.Fatalf("decode file id: %v", err)
	}
	return id
}

func TestEvidenceUploadDownload(t *testing.T) {
	h := setupHandler(t)
	paymentID := createPayment(t, h)
	payload := []byte("binary\x00receipt")
	fileID := uploadEvidence(t, h, paymentID, "receipt.jpg", payload)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/download_evidence/"+fileID, nil)
	req.SetPathValue("file_id", fileID)
	rec := httptest.NewRecorder()
	h.DownloadEvidence(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200 got %d body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=receipt.jpg" {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("downloaded bytes differ: %q", rec.Body.Bytes())
	}
}

func TestDownloadEvidenceFilenameQuoting(t *testing.T) {
	h := setupHandler(t)
	paymentID := createPayment(t, h)
	name := `my receipt; "final".pdf`
	fileID := uploadEvidence(t, h, paymentID, name, []byte("pdf bytes"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/download_evidence/"+fileID, nil)
	req.SetPathValue("file_id", fileID)
	rec := httptest.NewRecorder()
	h.DownloadEvidence(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download: expected 200 got %d", rec.Code)
	}
	// Spaces, semicolons, and quotes must end up inside a quoted parameter.
	want := `attachment; filename="my receipt; \"final\".pdf"`
	if cd := rec.Header().Get("Content-Disposition"); cd != want {
		t.Fatalf("unexpected disposition %q, want %q", cd, want)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("expected application/pdf got %q", ct)
	}
}

func TestUploadEvidenceMissingFile(t *testing.T) {
	h := setupHandler(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "no file here"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/p1/upload_evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetPathValue("payment_id", "p1")
	rec := httptest.NewRecorder()
	h.UploadEvidence(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "missing_file") {
		t.Fatalf("expected missing_file body, got %s", rec.Body.String())
	}
}

func TestDownloadEvidenceNotFound(t *testing.T) {
	h := setupHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment/download_evidence/nope", nil)
	req.SetPathValue("file_id", "nope")
	rec := httptest.NewRecorder()
	h.DownloadEvidence(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}
