package models

import "time"

// EvidenceFile is a binary attachment (receipt/invoice) for a payment.
// Bytes are stored base64-encoded in the evidence_file column. PaymentID is
// informational only; there is no FK and no cascade from payments.
type EvidenceFile struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	PaymentID    string    `gorm:"index" json:"payment_id"`
	Filename     string    `gorm:"not null" json:"filename"`
	EvidenceFile string    `gorm:"column:evidence_file;not null" json:"-"`
	CreatedAt    time.Time `json:"-"`
}
