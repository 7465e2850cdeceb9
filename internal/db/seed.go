package db

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/payments-app/internal/models"
	"github.com/diewo77/payments-app/internal/store"
)

// seedDateLayouts are the due-date formats tolerated in seed files; every
// parsed value is rewritten in the canonical models.TimeLayout.
var seedDateLayouts = []string{
	models.TimeLayout,
	models.DueDateInputLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadPaymentsCSV bulk-imports payments from a CSV file, once: any rows
// already in the payments table make it a no-op. Rows failing validation
// are logged and skipped; the valid remainder is inserted in one batch.
func LoadPaymentsCSV(gdb *gorm.DB, path string) error {
	st := store.New(gdb)
	count, err := st.CountPayments(store.PaymentFilter{})
	if err != nil {
		return fmt.Errorf("seed precheck: %w", err)
	}
	if count > 0 {
		log.Printf("payments table already has %d rows; skipping CSV load", count)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	rows, err := readSeedRows(f, time.Now().UTC())
	if err != nil {
		return err
	}
	log.Printf("seeding %d payments from %s", len(rows), path)
	return st.InsertPayments(rows)
}

// readSeedRows parses and normalizes the whole file before anything is
// inserted. now pins "today" for the status backfill.
func readSeedRows(r io.Reader, now time.Time) ([]models.Payment, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read seed header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	var rows []models.Payment
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed row %d: %w", line, err)
		}
		p, err := paymentFromRecord(idx, rec, now)
		if err != nil {
			log.Printf("seed row %d skipped: %v", line, err)
			continue
		}
		rows = append(rows, *p)
	}
	return rows, nil
}

func paymentFromRecord(idx map[string]int, rec []string, now time.Time) (*models.Payment, error) {
	col := func(name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	dueDate, err := parseSeedDate(col("payee_due_date"))
	if err != nil {
		return nil, err
	}

	p := &models.Payment{
		ID:                   col("id"),
		PayeeFirstName:       col("payee_first_name"),
		PayeeLastName:        col("payee_last_name"),
		PayeePaymentStatus:   models.PaymentStatus(col("payee_payment_status")),
		PayeeAddedDateUTC:    col("payee_added_date_utc"),
		PayeeDueDate:         dueDate,
		PayeeAddressLine1:    col("payee_address_line_1"),
		PayeeAddressLine2:    col("payee_address_line_2"),
		PayeeCity:            col("payee_city"),
		PayeeCountry:         col("payee_country"),
		PayeeProvinceOrState: col("payee_province_or_state"),
		PayeePostalCode:      col("payee_postal_code"),
		PayeePhoneNumber:     col("payee_phone_number"),
		PayeeEmail:           col("payee_email"),
		Currency:             col("currency"),
	}
	// Historical files sometimes lack the country column; the placeholder
	// keeps those rows loadable.
	if p.PayeeCountry == "" {
		p.PayeeCountry = "country"
	}
	if v := col("discount_percent"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("discount_percent %q: %w", v, err)
		}
		p.DiscountPercent = &f
	}
	if v := col("tax_percent"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("tax_percent %q: %w", v, err)
		}
		p.TaxPercent = &f
	}
	if v := col("due_amount"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("due_amount %q: %w", v, err)
		}
		p.DueAmount = f
	}

	// Backfill the stored status from the due date. The canonical format is
	// zero-padded UTC, so comparing the YYYY-MM-DD prefixes lexically is
	// comparing dates.
	duePrefix := dueDate[:10]
	todayPrefix := now.Format(models.TimeLayout)[:10]
	switch {
	case duePrefix == todayPrefix:
		p.PayeePaymentStatus = models.StatusDueNow
	case duePrefix < todayPrefix:
		p.PayeePaymentStatus = models.StatusOverdue
	}

	p.ApplyDefaults(now)
	if v := p.Validate(); !v.Empty() {
		return nil, fmt.Errorf("validation failed: %v", v)
	}
	return p, nil
}

func parseSeedDate(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("payee_due_date is empty")
	}
	for _, layout := range seedDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Format(models.TimeLayout), nil
		}
	}
	return "", fmt.Errorf("payee_due_date %q: unrecognized format", value)
}
