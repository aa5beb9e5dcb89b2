// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/promohub/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for promohub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, discord_guild_id, etc.
//   - Environment variables: PROMOHUB_MONGO_URI, PROMOHUB_DISCORD_TOKEN, etc.
//   - Command-line flags: --mongo_uri, --discord_token, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendMongo, Desc: "Record store backend: 'mongo' or 'api'"},

	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "promohub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 50, Desc: "MongoDB max connection pool size"},

	// Records API
	{Name: "api_base_url", Default: "", Desc: "Records API base URL (api backend)"},
	{Name: "api_client_id", Default: "", Desc: "Records API OAuth2 client ID"},
	{Name: "api_client_secret", Default: "", Desc: "Records API OAuth2 client secret"},
	{Name: "api_token_url", Default: "", Desc: "Records API OAuth2 token URL"},

	// Discord
	{Name: "discord_token", Default: "", Desc: "Discord bot token"},
	{Name: "discord_guild_id", Default: "", Desc: "Discord guild (server) ID"},

	{Name: "channel_identification", Default: "", Desc: "Channel ID of the identification panel"},
	{Name: "channel_create_promo", Default: "", Desc: "Channel ID of the promo creation panel"},
	{Name: "channel_inscription_requests", Default: "", Desc: "Channel ID of the inscription panel"},
	{Name: "channel_manage_inscriptions", Default: "", Desc: "Channel ID where requests are reviewed"},

	{Name: "role_formateur", Default: "", Desc: "Facilitator role ID"},
	{Name: "role_apprenant", Default: "", Desc: "Learner role ID granted on identification (optional)"},
	{Name: "category_template", Default: "", Desc: "Category ID cloned for every promo"},

	// Scheduling
	{Name: "lifecycle_interval", Default: "1h", Desc: "Interval of the start/archive batches (e.g., 1h, 30m)"},
	{Name: "selection_ttl", Default: "5m", Desc: "Lifetime of a promo-creation selection"},

	{Name: "post_panels", Default: false, Desc: "Post the entry panels at startup"},
	{Name: "operator_token_hash", Default: "", Desc: "bcrypt hash of the operator bearer token (blank disables /promos)"},

	{Name: "audit_log", Default: auditlog.All, Desc: "Audit logging: 'all' (db+log), 'db', 'log', or 'off'"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, PROMOHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PROMOHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend: strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),

		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),

		APIBaseURL:      appValues.String("api_base_url"),
		APIClientID:     appValues.String("api_client_id"),
		APIClientSecret: appValues.String("api_client_secret"),
		APITokenURL:     appValues.String("api_token_url"),

		DiscordToken:   appValues.String("discord_token"),
		DiscordGuildID: appValues.String("discord_guild_id"),

		ChannelIdentification:      appValues.String("channel_identification"),
		ChannelCreatePromo:         appValues.String("channel_create_promo"),
		ChannelInscriptionRequests: appValues.String("channel_inscription_requests"),
		ChannelManageInscriptions:  appValues.String("channel_manage_inscriptions"),

		RoleFormateur:    appValues.String("role_formateur"),
		RoleApprenant:    appValues.String("role_apprenant"),
		CategoryTemplate: appValues.String("category_template"),

		LifecycleInterval: appValues.Duration("lifecycle_interval", time.Hour),
		SelectionTTL:      appValues.Duration("selection_ttl", 5*time.Minute),

		PostPanels:        appValues.Bool("post_panels"),
		OperatorTokenHash: appValues.String("operator_token_hash"),
		AuditLog:          strings.ToLower(appValues.String("audit_log")),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Everything the bot needs to reach Discord and clone workspaces is checked
// here so a misconfigured deployment fails before connecting.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	switch appCfg.StoreBackend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
		}
		if appCfg.MongoDatabase == "" {
			errs = append(errs, errors.New("mongo_database is required"))
		}
	case BackendAPI:
		if appCfg.APIBaseURL == "" {
			errs = append(errs, errors.New("api_base_url is required for the api backend"))
		}
		if appCfg.APIClientID != "" && appCfg.APITokenURL == "" {
			errs = append(errs, errors.New("api_token_url is required with api_client_id"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store_backend %q (want %q or %q)", appCfg.StoreBackend, BackendMongo, BackendAPI))
	}

	if appCfg.DiscordToken == "" {
		errs = append(errs, errors.New("discord_token is required"))
	}
	if appCfg.DiscordGuildID == "" {
		errs = append(errs, errors.New("discord_guild_id is required"))
	}
	if appCfg.CategoryTemplate == "" {
		errs = append(errs, errors.New("category_template is required"))
	}
	if appCfg.RoleFormateur == "" {
		errs = append(errs, errors.New("role_formateur is required"))
	}
	if appCfg.LifecycleInterval <= 0 {
		errs = append(errs, errors.New("lifecycle_interval must be positive"))
	}
	if appCfg.SelectionTTL <= 0 {
		errs = append(errs, errors.New("selection_ttl must be positive"))
	}

	switch appCfg.AuditLog {
	case auditlog.All, auditlog.DB, auditlog.Log, auditlog.Off:
	default:
		errs = append(errs, fmt.Errorf("unknown audit_log %q", appCfg.AuditLog))
	}

	if appCfg.ChannelManageInscriptions == "" {
		logger.Warn("channel_manage_inscriptions is not set; inscription requests will be stored but not posted")
	}
	if appCfg.OperatorTokenHash == "" {
		logger.Info("operator_token_hash is not set; /promos is disabled")
	}

	return errors.Join(errs...)
}
