package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/diewo77/payments-app/internal/models"
	"github.com/diewo77/payments-app/internal/store"
	"github.com/diewo77/payments-app/internal/validation"
)

// ErrNotFound is returned when no record matches the requested id.
var ErrNotFound = errors.New("not_found")

// ValidationError carries per-field violations for bad input.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string { return "validation_failed" }

// PaginatedPayments is the list response shape.
type PaginatedPayments struct {
	Items       []models.Payment `json:"items"`
	Total       int64            `json:"total"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
	TotalPages  int              `json:"total_pages"`
	HasNext     bool             `json:"has_next"`
	HasPrevious bool             `json:"has_previous"`
}

// EvidenceDownload bundles what the download endpoint needs to stream back.
type EvidenceDownload struct {
	Data        []byte
	ContentType string
	Filename    string
}

// PaymentService derives total due and status, builds list queries, and
// coordinates evidence upload/download. Now is injectable so tests can pin
// "today".
type PaymentService struct {
	Store *store.Store
	Now   func() time.Time
}

func NewPaymentService(st *store.Store) *PaymentService {
	return &PaymentService{Store: st, Now: time.Now}
}

// List returns one page of payments sorted by added date (newest first).
// Every returned row gets total due and status recomputed in memory; the
// stored rows are never altered by a read.
func (s *PaymentService) List(page, pageSize int, status models.PaymentStatus, nameSearch string) (*PaginatedPayments, error) {
	filter := store.PaymentFilter{NameSearch: nameSearch, Status: status}
	skip := (page - 1) * pageSize

	total, err := s.Store.CountPayments(filter)
	if err != nil {
		return nil, err
	}
	items, err := s.Store.FindPayments(filter, "payee_added_date_utc", true, skip, pageSize)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Payment{}
	}
	for i := range items {
		s.computeTotalDue(&items[i])
		if err := s.deriveStatus(&items[i]); err != nil {
			return nil, err
		}
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &PaginatedPayments{
		Items:       items,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}

func (s *PaymentService) Get(id string) (*models.Payment, error) {
	p, err := s.Store.FindPaymentByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.computeTotalDue(p)
	if err := s.deriveStatus(p); err != nil {
		return nil, err
	}
	return p, nil
}

// updatableFields allow-lists the columns a partial update may touch; the
// id is immutable and anything outside this set is dropped silently.
var updatableFields = map[string]struct{}{
	"payee_first_name":        {},
	"payee_last_name":         {},
	"payee_payment_status":    {},
	"payee_added_date_utc":    {},
	"payee_due_date":          {},
	"payee_address_line_1":    {},
	"payee_address_line_2":    {},
	"payee_city":              {},
	"payee_country":           {},
	"payee_province_or_state": {},
	"payee_postal_code":       {},
	"payee_phone_number":      {},
	"payee_email":             {},
	"currency":                {},
	"discount_percent":        {},
	"tax_percent":             {},
	"due_amount":              {},
	"evidence_file_url":       {},
}

// optionalFields may be set to JSON null to clear the stored value.
var optionalFields = map[string]struct{}{
	"payee_address_line_2":    {},
	"payee_province_or_state": {},
	"discount_percent":        {},
	"tax_percent":             {},
	"evidence_file_url":       {},
}

// Update merges an arbitrary partial field bag into an existing payment.
// Only known fields survive; the ones present are validated individually.
// Status derivation runs over the partial fields when they carry a due
// date, so a stale caller-supplied status cannot win over the calendar —
// unless that status is the terminal "completed".
func (s *PaymentService) Update(id string, raw map[string]any) (*models.Payment, error) {
	fields := make(map[string]any, len(raw))
	v := validation.Violations{}
	for name, value := range raw {
		if _, ok := updatableFields[name]; !ok {
			continue
		}
		if value == nil {
			if _, optional := optionalFields[name]; optional {
				fields[name] = nil
			} else {
				v[name] = "required"
			}
			continue
		}
		switch name {
		case "discount_percent", "tax_percent":
			f, ok := value.(float64)
			if !ok {
				v[name] = "must_be_number"
				continue
			}
			validation.RangeFloat(name, f, 0, 100, v)
			fields[name] = f
		case "due_amount":
			f, ok := value.(float64)
			if !ok {
				v[name] = "must_be_number"
				continue
			}
			validation.NonNegativeFloat(name, f, v)
			fields[name] = f
		case "payee_payment_status":
			str, ok := value.(string)
			if !ok || !models.PaymentStatus(str).Valid() {
				v[name] = "invalid_status"
				continue
			}
			fields[name] = str
		case "payee_due_date":
			str, ok := value.(string)
			if !ok {
				v[name] = "must_be_string"
				continue
			}
			normalized, err := normalizeDueDate(str)
			if err != nil {
				v[name] = "invalid_date_format"
				continue
			}
			fields[name] = normalized
		case "payee_email":
			str, ok := value.(string)
			if !ok {
				v[name] = "must_be_string"
				continue
			}
			validation.Required(name, str, v)
			validation.Email(name, str, v)
			fields[name] = str
		default:
			str, ok := value.(string)
			if !ok {
				v[name] = "must_be_string"
				continue
			}
			if _, optional := optionalFields[name]; !optional {
				validation.Required(name, str, v)
			}
			fields[name] = str
		}
	}
	if !v.Empty() {
		return nil, &ValidationError{Violations: v}
	}

	// Derivation is defined only when the partial update carries a due
	// date; a supplied "completed" is terminal and stays.
	if due, ok := fields["payee_due_date"].(string); ok {
		status, _ := fields["payee_payment_status"].(string)
		if models.PaymentStatus(status) != models.StatusCompleted {
			derived, err := s.statusFor(due)
			if err != nil {
				return nil, &ValidationError{Violations: validation.Violations{"payee_due_date": "invalid_date_format"}}
			}
			fields["payee_payment_status"] = string(derived)
		}
	}

	p, err := s.Store.UpsertPaymentByID(id, fields)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.computeTotalDue(p)
	if err := s.deriveStatus(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PaymentService) Delete(id string) error {
	err := s.Store.DeletePaymentByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// Create normalizes the due date into canonical form, applies defaults,
// validates, and inserts. Returns the (possibly generated) id.
func (s *PaymentService) Create(p *models.Payment) (string, error) {
	if p.PayeeDueDate != "" {
		normalized, err := normalizeDueDate(p.PayeeDueDate)
		if err != nil {
			return "", &ValidationError{Violations: validation.Violations{"payee_due_date": "invalid_date_format"}}
		}
		p.PayeeDueDate = normalized
	}
	p.ApplyDefaults(s.Now())
	if v := p.Validate(); !v.Empty() {
		return "", &ValidationError{Violations: v}
	}
	return s.Store.InsertPayment(p)
}

// UploadEvidence stores the file bytes base64-encoded under a fresh id.
// The owning payment is not checked for existence, and a store failure is
// surfaced to the caller.
func (s *PaymentService) UploadEvidence(paymentID string, data []byte, filename string) (string, error) {
	e := &models.EvidenceFile{
		ID:           uuid.NewString(),
		PaymentID:    paymentID,
		Filename:     filename,
		EvidenceFile: base64.StdEncoding.EncodeToString(data),
	}
	return s.Store.InsertEvidence(e)
}

func (s *PaymentService) DownloadEvidence(fileID string) (*EvidenceDownload, error) {
	e, err := s.Store.FindEvidenceByID(fileID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(e.EvidenceFile)
	if err != nil {
		return nil, fmt.Errorf("decode evidence %s: %w", fileID, err)
	}
	return &EvidenceDownload{
		Data:        data,
		ContentType: ContentTypeFor(e.Filename),
		Filename:    e.Filename,
	}, nil
}

// ContentTypeFor resolves a download content type from the filename
// extension: jpg/jpeg and pdf get fixed types regardless of the system
// table, everything else falls through to the generic mapping.
func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".pdf":
		return "application/pdf"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// normalizeDueDate parses the canonical layout with optional fractional
// seconds and reformats at second precision.
func normalizeDueDate(value string) (string, error) {
	t, err := time.Parse(models.DueDateInputLayout, value)
	if err != nil {
		return "", err
	}
	return t.UTC().Format(models.TimeLayout), nil
}

func (s *PaymentService) computeTotalDue(p *models.Payment) {
	var discount, tax float64
	if p.DiscountPercent != nil {
		discount = *p.DiscountPercent / 100
	}
	if p.TaxPercent != nil {
		tax = *p.TaxPercent / 100
	}
	p.TotalDue = p.DueAmount * (1 - discount) * (1 + tax)
}

// deriveStatus recomputes the status from the due date vs today (UTC).
// "completed" is terminal and left untouched.
func (s *PaymentService) deriveStatus(p *models.Payment) error {
	if p.PayeePaymentStatus == models.StatusCompleted {
		return nil
	}
	derived, err := s.statusFor(p.PayeeDueDate)
	if err != nil {
		return fmt.Errorf("payment %s: %w", p.ID, err)
	}
	p.PayeePaymentStatus = derived
	return nil
}

func (s *PaymentService) statusFor(dueDate string) (models.PaymentStatus, error) {
	due, err := time.Parse(models.TimeLayout, dueDate)
	if err != nil {
		return "", fmt.Errorf("parse due date %q: %w", dueDate, err)
	}
	now := s.Now().UTC()
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case dueDay.Equal(today):
		return models.StatusDueNow, nil
	case dueDay.Before(today):
		return models.StatusOverdue, nil
	default:
		return models.StatusPending, nil
	}
}
