package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]int{"n": 1})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type got %q", ct)
	}
	if rec.Body.String() != `{"n":1}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	JSON(rec, http.StatusOK, nil)
	if rec.Body.String() != "null" {
		t.Fatalf("nil payload must serialize as null, got %s", rec.Body.String())
	}
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, http.StatusBadRequest, "validation_failed", map[string]string{"field": "required"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":"validation_failed","details":{"field":"required"}}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	// Details are omitted entirely when nil.
	rec = httptest.NewRecorder()
	JSONError(rec, http.StatusNotFound, "not_found", nil)
	if rec.Body.String() != `{"error":"not_found"}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
