package db

import (
	"strings"
	"testing"
)

func TestRunMigrationsRequiresDSN(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	err := RunMigrations()
	if err == nil {
		t.Fatalf("expected error for empty DATABASE_DSN")
	}
	if !strings.Contains(err.Error(), "DATABASE_DSN") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalizeDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@host:5432/db?sslmode=disable": "postgres://u:p@host:5432/db?sslmode=disable",
		`"postgres://u:p@host/db"`:                    "postgres://u:p@host/db",
		"host=localhost user=u dbname=db":             "host=localhost user=u dbname=db sslmode=disable",
		"host=localhost   user=u sslmode=require":     "host=localhost user=u sslmode=require",
		"": "",
	}
	for in, want := range cases {
		if got := NormalizeDSN(in); got != want {
			t.Fatalf("NormalizeDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
