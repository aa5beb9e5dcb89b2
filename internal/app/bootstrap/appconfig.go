// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Store backends.
const (
	BackendMongo = "mongo"
	BackendAPI   = "api"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration (ports, TLS, log level).
//
// The struct is passed to every lifecycle hook, so anything needed during
// startup, request handling, or shutdown lives here.
type AppConfig struct {
	// StoreBackend selects where promos and members live: "mongo" or "api".
	StoreBackend string

	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64

	// Records API configuration (only used if StoreBackend is "api")
	APIBaseURL      string
	APIClientID     string // OAuth2 client credentials; blank sends unauthenticated requests
	APIClientSecret string
	APITokenURL     string

	// Discord
	DiscordToken   string
	DiscordGuildID string

	// Channels
	ChannelIdentification      string // identification panel
	ChannelCreatePromo         string // promo creation panel
	ChannelInscriptionRequests string // inscription panel
	ChannelManageInscriptions  string // request threads and lifecycle notices

	// Roles and template
	RoleFormateur    string // facilitator role, gates creation and decisions
	RoleApprenant    string // learner role granted on identification (optional)
	CategoryTemplate string // category cloned for every new promo

	// Scheduling
	LifecycleInterval time.Duration // how often the start/archive batches run
	SelectionTTL      time.Duration // lifetime of a promo-creation selection

	// PostPanels posts the entry buttons at startup.
	PostPanels bool

	// OperatorTokenHash is the bcrypt hash of the operator bearer token.
	// Blank disables /promos.
	OperatorTokenHash string

	// AuditLog controls audit destinations: all, db, log or off.
	AuditLog string
}
