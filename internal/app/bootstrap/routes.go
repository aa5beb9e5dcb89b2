// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/promohub/internal/app/features/auditlog"
	healthfeature "github.com/dalemusser/promohub/internal/app/features/health"
	promosfeature "github.com/dalemusser/promohub/internal/app/features/promos"
	"github.com/dalemusser/promohub/internal/app/system/auth"
	"github.com/dalemusser/promohub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed, so deps.Services is populated.
//
// The bot itself runs on the Discord gateway; HTTP only carries the health
// check and the operator endpoints.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	return newRouter(appCfg, deps, clockwork.NewRealClock(), logger), nil
}

// Failed operator token attempts allowed per client IP and window.
const (
	operatorFailureLimit  = 10
	operatorFailureWindow = 15 * time.Minute
)

func newRouter(appCfg AppConfig, deps DBDeps, clock clockwork.Clock, logger *zap.Logger) chi.Router {
	svc := deps.Services
	r := chi.NewRouter()

	guard := auth.NewGuard(appCfg.OperatorTokenHash,
		ratelimit.New(operatorFailureLimit, operatorFailureWindow, clock),
		logger.Named("operator"))

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.Records, appCfg.StoreBackend, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Operator endpoints: listing and on-demand transitions
	promosHandler := promosfeature.NewHandler(svc.Records, svc.Orchestrator, svc.Scheduler, svc.Notifier, logger.Named("operator"))
	r.Mount("/promos", promosfeature.Routes(promosHandler, guard))

	// The audit trail lives in MongoDB only.
	if svc.AuditStore != nil {
		auditHandler := auditlogfeature.NewHandler(svc.AuditStore, logger.Named("operator"))
		r.Mount("/audit", auditlogfeature.Routes(auditHandler, guard))
	}

	return r
}
