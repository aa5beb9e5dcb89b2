package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/system/auditlog"
	"github.com/dalemusser/promohub/internal/app/system/auth"
	"github.com/dalemusser/promohub/internal/domain/models"
	"github.com/dalemusser/promohub/internal/testutil"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		StoreBackend:      BackendMongo,
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "promohub",
		DiscordToken:      "token",
		DiscordGuildID:    "guild",
		CategoryTemplate:  "tmpl",
		RoleFormateur:     "role",
		LifecycleInterval: time.Hour,
		SelectionTTL:      5 * time.Minute,
		AuditLog:          auditlog.All,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"api backend", func(c *AppConfig) { c.StoreBackend = BackendAPI; c.APIBaseURL = "https://api.example.org" }, ""},
		{"unknown backend", func(c *AppConfig) { c.StoreBackend = "sqlite" }, "unknown store_backend"},
		{"bad mongo uri", func(c *AppConfig) { c.MongoURI = "postgres://x" }, "invalid MongoDB URI"},
		{"api without url", func(c *AppConfig) { c.StoreBackend = BackendAPI }, "api_base_url"},
		{"client id without token url", func(c *AppConfig) {
			c.StoreBackend = BackendAPI
			c.APIBaseURL = "https://api.example.org"
			c.APIClientID = "id"
		}, "api_token_url"},
		{"missing token", func(c *AppConfig) { c.DiscordToken = "" }, "discord_token"},
		{"missing guild", func(c *AppConfig) { c.DiscordGuildID = "" }, "discord_guild_id"},
		{"missing template", func(c *AppConfig) { c.CategoryTemplate = "" }, "category_template"},
		{"missing facilitator", func(c *AppConfig) { c.RoleFormateur = "" }, "role_formateur"},
		{"zero interval", func(c *AppConfig) { c.LifecycleInterval = 0 }, "lifecycle_interval"},
		{"zero ttl", func(c *AppConfig) { c.SelectionTTL = 0 }, "selection_ttl"},
		{"bad audit mode", func(c *AppConfig) { c.AuditLog = "everything" }, "audit_log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(nil, cfg, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildServices_WiresJobsAndPanels(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC))
	guild := testutil.NewGuild()
	rc := testutil.NewResources(clock)

	cfg := validConfig()
	cfg.CategoryTemplate = guild.AddCategory("Modèle", platform.ChannelSpec{Name: "general", Type: platform.ChannelText})
	cfg.RoleFormateur = guild.AddRole("Formateur")
	cfg.ChannelIdentification = guild.AddTextChannel("identification")
	cfg.ChannelManageInscriptions = guild.AddTextChannel("gestion")

	svc := buildServices(cfg, rc, nil, guild, clock, testLogger())
	if svc.AuditStore != nil {
		t.Error("no audit store expected without a database")
	}

	if err := svc.Interactions.PostPanels(context.Background()); err != nil {
		t.Fatalf("PostPanels: %v", err)
	}
	if n := len(guild.Messages(cfg.ChannelIdentification)); n != 1 {
		t.Errorf("identification panel messages = %d, want 1", n)
	}

	// A due promo is started by the job runner at startup.
	p := rc.SeedPromo(models.Promo{Name: "Due", Status: models.PromoPending,
		StartDate: clock.Now().Add(-time.Hour), EndDate: clock.Now().AddDate(1, 0, 0)})

	svc.Runner.Start()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if got, _ := rc.Promo(p.ID); got.Status == models.PromoActive {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("promo was not started by the run-at-start job")
		}
		time.Sleep(10 * time.Millisecond)
	}
	svc.Runner.Stop()
}

func TestRouter_HealthAndOperatorRoutes(t *testing.T) {
	clock := clockwork.NewFakeClock()
	guild := testutil.NewGuild()
	rc := testutil.NewResources(clock)

	hash, err := auth.HashToken("tok")
	if err != nil {
		t.Fatalf("HashToken: %v", err)
	}
	cfg := validConfig()
	cfg.OperatorTokenHash = hash

	deps := DBDeps{Records: rc, Services: buildServices(cfg, rc, nil, guild, clock, testLogger())}
	r := newRouter(cfg, deps, clock, testLogger())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/promos/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/promos without token status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/promos/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("/promos with token status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/audit should not be mounted without a database, got %d", rec.Code)
	}
}
