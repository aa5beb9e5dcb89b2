// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/promohub/internal/app/platform/discord"
	"github.com/dalemusser/promohub/internal/app/resource"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE hands DBDeps to each hook by value, so everything built in
// Startup hangs off the Services pointer allocated in ConnectDB.
type DBDeps struct {
	// Set only for the mongo backend.
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Records is the system-of-record facade for the selected backend.
	Records resource.Client

	// Guild is the Discord session. The gateway is opened in Startup once
	// the interaction handler is registered.
	Guild *discord.Guild

	Services *Services
}
