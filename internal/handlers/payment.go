package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strconv"

	"github.com/diewo77/payments-app/internal/httpx"
	"github.com/diewo77/payments-app/internal/models"
	"github.com/diewo77/payments-app/internal/services"
)

// maxEvidenceUpload caps the multipart memory buffer for evidence files.
const maxEvidenceUpload = 32 << 20 // 32 MiB

type PaymentHandler struct {
	Svc *services.PaymentService
}

func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

// List: GET /payments
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			page = n
		}
	}
	pageSize := 50
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 100 {
			pageSize = n
		}
	}
	status := models.PaymentStatus(r.URL.Query().Get("payee_payment_status"))
	search := r.URL.Query().Get("search_payee_name")

	result, err := h.Svc.List(page, pageSize, status, search)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// Get: GET /payment/{payment_id}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.Get(r.PathValue("payment_id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Update: PUT /payment/{payment_id} — partial field bag
func (h *PaymentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	p, err := h.Svc.Update(r.PathValue("payment_id"), fields)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// Delete: DELETE /payment/{payment_id}
func (h *PaymentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(r.PathValue("payment_id")); err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Payment deleted successfully",
	})
}

// Create: POST /payment — full payment body, responds with the id
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p models.Payment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	id, err := h.Svc.Create(&p)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, id)
}

// UploadEvidence: POST /payment/{payment_id}/upload_evidence — multipart "file"
func (h *PaymentHandler) UploadEvidence(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxEvidenceUpload); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_multipart", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "missing_file", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "unreadable_file", nil)
		return
	}
	id, err := h.Svc.UploadEvidence(r.PathValue("payment_id"), data, header.Filename)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, id)
}

// DownloadEvidence: GET /payment/download_evidence/{file_id}
func (h *PaymentHandler) DownloadEvidence(w http.ResponseWriter, r *http.Request) {
	dl, err := h.Svc.DownloadEvidence(r.PathValue("file_id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", dl.ContentType)
	// FormatMediaType quotes the filename, so spaces/quotes/semicolons in
	// uploaded names cannot break the header.
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

// fail maps domain errors to status codes. Anything unanticipated becomes a
// generic 500; the detail goes to the log, never to the caller.
func (h *PaymentHandler) fail(w http.ResponseWriter, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", ve.Violations)
	case errors.Is(err, services.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	default:
		log.Printf("payment handler error: %v", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
