package db

import "testing"

func TestPostgresConfigDSN(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "chat"}
	want := "postgres://u:p@db:5432/chat?sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN: got %q want %q", got, want)
	}
	cfg.SSLMode = "require"
	if got := cfg.DSN(); got != "postgres://u:p@db:5432/chat?sslmode=require" {
		t.Fatalf("DSN sslmode: got %q", got)
	}
}
