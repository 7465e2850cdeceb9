package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/payments-app/internal/models"
)

// ErrNotFound is the normal "no matching record" result; every other error
// from the underlying store propagates unchanged.
var ErrNotFound = errors.New("record not found")

// PaymentFilter is the predicate the service builds for list queries.
// NameSearch is a case-insensitive substring matched against first name,
// last name, or email; Status is an exact match on the stored status.
type PaymentFilter struct {
	NameSearch string
	Status     models.PaymentStatus
}

func (f PaymentFilter) apply(tx *gorm.DB) *gorm.DB {
	if f.NameSearch != "" {
		like := "%" + strings.ToLower(f.NameSearch) + "%"
		tx = tx.Where(
			"lower(payee_first_name) LIKE ? OR lower(payee_last_name) LIKE ? OR lower(payee_email) LIKE ?",
			like, like, like,
		)
	}
	if f.Status != "" {
		tx = tx.Where("payee_payment_status = ?", f.Status)
	}
	return tx
}

// Store is the narrow adapter over the two logical collections (payments,
// evidence files). Constructed explicitly and handed to the service so
// tests can swap the backing database.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) FindPayments(f PaymentFilter, sortField string, descending bool, skip, limit int) ([]models.Payment, error) {
	order := sortField
	if descending {
		order += " desc"
	}
	var payments []models.Payment
	err := f.apply(s.db.Model(&models.Payment{})).
		Order(order).
		Offset(skip).
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) CountPayments(f PaymentFilter) (int64, error) {
	var count int64
	if err := f.apply(s.db.Model(&models.Payment{})).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) FindPaymentByID(id string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPaymentByID merges the given column values into an existing row and
// returns the updated record. The row is never replaced wholesale.
func (s *Store) UpsertPaymentByID(id string, fields map[string]any) (*models.Payment, error) {
	if _, err := s.FindPaymentByID(id); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.db.Model(&models.Payment{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return s.FindPaymentByID(id)
}

func (s *Store) DeletePaymentByID(id string) error {
	res := s.db.Where("id = ?", id).Delete(&models.Payment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) InsertPayment(p *models.Payment) (string, error) {
	if err := s.db.Create(p).Error; err != nil {
		return "", err
	}
	return p.ID, nil
}

// InsertPayments bulk-inserts seed rows in one operation.
func (s *Store) InsertPayments(payments []models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return s.db.Create(&payments).Error
}

func (s *Store) InsertEvidence(e *models.EvidenceFile) (string, error) {
	if err := s.db.Create(e).Error; err != nil {
		return "", err
	}
	return e.ID, nil
}

func (s *Store) FindEvidenceByID(id string) (*models.EvidenceFile, error) {
	var e models.EvidenceFile
	err := s.db.Where("id = ?", id).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
