package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/diewo77/payments-app/internal/validation"
)

// TimeLayout is the canonical timestamp format stored for every date field:
// zero-padded, second precision, UTC (the trailing Z is literal).
const TimeLayout = "2006-01-02T15:04:05Z"

// DueDateInputLayout additionally accepts fractional seconds on input
// (create requests commonly carry microseconds).
const DueDateInputLayout = "2006-01-02T15:04:05.999999999Z"

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusDueNow    PaymentStatus = "due_now"
	StatusOverdue   PaymentStatus = "overdue"
	StatusCompleted PaymentStatus = "completed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDueNow, StatusOverdue, StatusCompleted:
		return true
	}
	return false
}

// Payment is one payee obligation. Dates are kept as canonical strings, the
// way the documents were stored historically; status and total due are
// derived at read time and never trusted from storage.
type Payment struct {
	ID                   string        `gorm:"primaryKey" json:"id"`
	PayeeFirstName       string        `gorm:"not null;index" json:"payee_first_name"`
	PayeeLastName        string        `gorm:"not null;index" json:"payee_last_name"`
	PayeePaymentStatus   PaymentStatus `gorm:"not null;default:'pending'" json:"payee_payment_status"`
	PayeeAddedDateUTC    string        `gorm:"column:payee_added_date_utc;not null;index" json:"payee_added_date_utc"`
	PayeeDueDate         string        `gorm:"not null" json:"payee_due_date"`
	PayeeAddressLine1    string        `gorm:"column:payee_address_line_1;not null" json:"payee_address_line_1"`
	PayeeAddressLine2    string        `gorm:"column:payee_address_line_2" json:"payee_address_line_2,omitempty"`
	PayeeCity            string        `gorm:"not null" json:"payee_city"`
	PayeeCountry         string        `gorm:"not null" json:"payee_country"`
	PayeeProvinceOrState string        `json:"payee_province_or_state,omitempty"`
	PayeePostalCode      string        `gorm:"not null" json:"payee_postal_code"`
	PayeePhoneNumber     string        `gorm:"not null" json:"payee_phone_number"`
	PayeeEmail           string        `gorm:"not null;index" json:"payee_email"`
	Currency             string        `gorm:"not null" json:"currency"`
	DiscountPercent      *float64      `json:"discount_percent,omitempty"`
	TaxPercent           *float64      `json:"tax_percent,omitempty"`
	DueAmount            float64       `gorm:"not null" json:"due_amount"`
	TotalDue             float64       `gorm:"-" json:"total_due"`
	EvidenceFileURL      string        `gorm:"column:evidence_file_url" json:"evidence_file_url,omitempty"`
	CreatedAt            time.Time     `json:"-"`
	UpdatedAt            time.Time     `json:"-"`
}

// ApplyDefaults fills the generated and time-based fields the caller may
// omit: a fresh id, pending status, and canonical now-UTC dates.
func (p *Payment) ApplyDefaults(now time.Time) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PayeePaymentStatus == "" {
		p.PayeePaymentStatus = StatusPending
	}
	ts := now.UTC().Format(TimeLayout)
	if p.PayeeAddedDateUTC == "" {
		p.PayeeAddedDateUTC = ts
	}
	if p.PayeeDueDate == "" {
		p.PayeeDueDate = ts
	}
}

// Validate collects field violations; an empty map means the record is
// acceptable for storage.
func (p *Payment) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("payee_first_name", p.PayeeFirstName, v)
	validation.Required("payee_last_name", p.PayeeLastName, v)
	validation.Required("payee_address_line_1", p.PayeeAddressLine1, v)
	validation.Required("payee_city", p.PayeeCity, v)
	validation.Required("payee_country", p.PayeeCountry, v)
	validation.Required("payee_postal_code", p.PayeePostalCode, v)
	validation.Required("payee_phone_number", p.PayeePhoneNumber, v)
	validation.Required("payee_email", p.PayeeEmail, v)
	validation.Required("currency", p.Currency, v)
	validation.Required("payee_due_date", p.PayeeDueDate, v)
	validation.Email("payee_email", p.PayeeEmail, v)
	if p.DiscountPercent != nil {
		validation.RangeFloat("discount_percent", *p.DiscountPercent, 0, 100, v)
	}
	if p.TaxPercent != nil {
		validation.RangeFloat("tax_percent", *p.TaxPercent, 0, 100, v)
	}
	validation.NonNegativeFloat("due_amount", p.DueAmount, v)
	if !p.PayeePaymentStatus.Valid() {
		v["payee_payment_status"] = "invalid_status"
	}
	return v
}
