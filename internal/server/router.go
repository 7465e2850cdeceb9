package server

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/diewo77/payments-app/internal/handlers"
	"github.com/diewo77/payments-app/internal/httpx"
	"github.com/diewo77/payments-app/internal/middleware"
	"github.com/diewo77/payments-app/internal/services"
	"github.com/diewo77/payments-app/internal/store"
)

const apiPrefix = "/api/v1"

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, corsOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// --- Health endpoints ---
	//revive:disable:unused-parameter simple handlers intentionally ignore *http.Request
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		// Perform a lightweight DB check (SELECT 1) – ignore detailed errors in body
		if err := db.Exec("SELECT 1").Error; err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Header().Set("Content-Type", "application/json")
			if _, werr := w.Write([]byte(`{"status":"degraded"}`)); werr != nil {
				_ = werr
			}
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	//revive:enable:unused-parameter

	// Payment endpoints
	svc := services.NewPaymentService(store.New(db))
	ph := handlers.NewPaymentHandler(svc)
	mux.HandleFunc("GET "+apiPrefix+"/payments", ph.List)
	mux.HandleFunc("POST "+apiPrefix+"/payment", ph.Create)
	// download_evidence is more specific than the {payment_id} wildcard
	mux.HandleFunc("GET "+apiPrefix+"/payment/download_evidence/{file_id}", ph.DownloadEvidence)
	mux.HandleFunc("GET "+apiPrefix+"/payment/{payment_id}", ph.Get)
	mux.HandleFunc("PUT "+apiPrefix+"/payment/{payment_id}", ph.Update)
	mux.HandleFunc("DELETE "+apiPrefix+"/payment/{payment_id}", ph.Delete)
	mux.HandleFunc("POST "+apiPrefix+"/payment/{payment_id}/upload_evidence", ph.UploadEvidence)

	cors := middleware.CORS(corsOrigins)
	return cors(withRecover(mux))
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
