package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/doctorsportal/portal/internal/config"
	"github.com/doctorsportal/portal/internal/platform/db"
	"github.com/doctorsportal/portal/internal/platform/middleware"
	"github.com/doctorsportal/portal/internal/platform/payment"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	want := map[string][]string{
		"serve":   nil,
		"migrate": {"up", "status"},
		"user":    {"promote"},
		"catalog": {"import"},
	}
	for name, subs := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("missing command %q", name)
			continue
		}
		for _, sub := range subs {
			if c, _, err := root.Find([]string{name, sub}); err != nil || c.Name() != sub {
				t.Errorf("missing command %q %q", name, sub)
			}
		}
	}
}

func TestUserPromote_RequiresEmail(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"user", "promote"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Error("expected an argument error")
	}
}

func TestCatalogImport_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treatments.yaml")
	data := "treatments:\n  - name: Cleaning\n    slots: [\"9am\", \"10am\"]\n    price: 40\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	root := rootCmd()
	root.SetArgs([]string{"catalog", "import", "--dry-run", path})
	root.SetOut(&out)
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "1 treatment(s) valid") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestCatalogImport_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "treatments.json")
	if err := os.WriteFile(path, []byte(`[{"name":""}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	root := rootCmd()
	root.SetArgs([]string{"catalog", "import", "--dry-run", path})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil {
		t.Error("expected validation error")
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "00001_users.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "00002_treatments.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2024-01-02 03:04:05") {
		t.Errorf("missing applied row: %q", out)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("missing pending row: %q", out)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger("production", &buf).Info().Msg("hello")
	if !strings.Contains(buf.String(), `"service":"portal-server"`) {
		t.Errorf("expected JSON with service field, got %q", buf.String())
	}

	buf.Reset()
	newLogger("development", &buf).Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output in development, got %q", buf.String())
	}
}

func TestNewGateway(t *testing.T) {
	g, err := newGateway(&config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(payment.Disabled); !ok {
		t.Errorf("expected disabled gateway, got %T", g)
	}

	g, err = newGateway(&config.Config{
		OmisePublicKey:    "pkey_test_123",
		OmiseSecretKey:    "skey_test_123",
		PaymentSourceType: "promptpay",
		PaymentCurrency:   "THB",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(*payment.OmiseGateway); !ok {
		t.Errorf("expected omise gateway, got %T", g)
	}
}

func TestNewLimiter(t *testing.T) {
	l, closeFn := newLimiter(context.Background(), &config.Config{RateLimitRPS: 5, RateLimitBurst: 5}, zerolog.Nop())
	defer closeFn()
	if _, ok := l.(*middleware.MemoryLimiter); !ok {
		t.Errorf("expected memory limiter, got %T", l)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	l, closeFn = newLimiter(ctx, &config.Config{RedisURL: "redis://127.0.0.1:1/0", RateLimitRPS: 5}, zerolog.Nop())
	defer closeFn()
	if _, ok := l.(*middleware.MemoryLimiter); !ok {
		t.Errorf("expected fallback to memory limiter, got %T", l)
	}
}
