// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/promohub/internal/app/admission"
	"github.com/dalemusser/promohub/internal/app/features/interactions"
	"github.com/dalemusser/promohub/internal/app/lifecycle"
	"github.com/dalemusser/promohub/internal/app/platform"
	"github.com/dalemusser/promohub/internal/app/resource"
	"github.com/dalemusser/promohub/internal/app/store/audit"
	"github.com/dalemusser/promohub/internal/app/system/auditlog"
	"github.com/dalemusser/promohub/internal/app/system/selection"
	"github.com/dalemusser/promohub/internal/app/system/tasks"
	"github.com/dalemusser/promohub/internal/app/system/workers"
	"github.com/dalemusser/promohub/internal/app/workspace"
	"github.com/dalemusser/waffle/config"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Services are the long-lived application components built in Startup.
type Services struct {
	Records      resource.Client
	AuditStore   *audit.Store // nil for the api backend
	Audit        *auditlog.Logger
	Selection    *selection.Cache
	Workspace    *workspace.Provider
	Orchestrator *lifecycle.Orchestrator
	Notifier     *lifecycle.Notifier
	Scheduler    *lifecycle.Scheduler
	Admission    *admission.Workflow
	Interactions *interactions.Handler
	Runner       *workers.Runner

	removeInteractionHandler func()
}

// buildServices wires every component on top of the record store and the
// chat platform. It starts nothing.
func buildServices(appCfg AppConfig, rc resource.Client, db *mongo.Database, p platform.Platform, clock clockwork.Clock, logger *zap.Logger) *Services {
	svc := &Services{Records: rc}

	var sink auditlog.Sink
	if db != nil {
		svc.AuditStore = audit.New(db)
		sink = svc.AuditStore
	}
	svc.Audit = auditlog.New(sink, logger.Named("audit"), auditlog.Config{
		Lifecycle: appCfg.AuditLog,
		Admission: appCfg.AuditLog,
	})

	svc.Selection = selection.New(clock, appCfg.SelectionTTL)
	svc.Workspace = workspace.New(p, workspace.Config{
		TemplateCategoryID: appCfg.CategoryTemplate,
		FacilitatorRoleID:  appCfg.RoleFormateur,
	}, logger.Named("workspace"))

	svc.Orchestrator = lifecycle.NewOrchestrator(rc, svc.Workspace, svc.Selection, svc.Audit, logger.Named("lifecycle"))
	svc.Notifier = lifecycle.NewNotifier(p, appCfg.ChannelManageInscriptions, logger.Named("notify"))
	svc.Scheduler = lifecycle.NewScheduler(rc, svc.Orchestrator, svc.Notifier, svc.Audit, logger.Named("scheduler"))

	svc.Admission = admission.New(rc, svc.Workspace, p, admission.Config{
		RequestsChannelID: appCfg.ChannelManageInscriptions,
		LearnerRoleID:     appCfg.RoleApprenant,
	}, svc.Audit, logger.Named("admission"))

	svc.Interactions = interactions.NewHandler(rc, svc.Orchestrator, svc.Admission, svc.Selection, p, interactions.Config{
		IdentificationChannelID: appCfg.ChannelIdentification,
		CreatePromoChannelID:    appCfg.ChannelCreatePromo,
		InscriptionChannelID:    appCfg.ChannelInscriptionRequests,
		FacilitatorRoleID:       appCfg.RoleFormateur,
	}, logger.Named("interactions"))

	jobs := []tasks.Job{
		tasks.PromoStartJob(svc.Scheduler, appCfg.LifecycleInterval, logger),
		tasks.PromoArchiveJob(svc.Scheduler, appCfg.LifecycleInterval, logger),
		tasks.SelectionSweepJob(svc.Selection, logger),
	}
	svc.Runner = workers.NewRunner(jobs, clock, logger.Named("jobs"))

	return svc
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// It wires the services, registers the interaction handler, opens the
// Discord gateway, optionally posts the entry panels and starts the
// lifecycle jobs. The first start and archive batches run right away.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	svc := buildServices(appCfg, deps.Records, deps.MongoDatabase, deps.Guild, clockwork.NewRealClock(), logger)

	svc.removeInteractionHandler = deps.Guild.OnInteraction(svc.Interactions.Handle)
	if err := deps.Guild.Open(); err != nil {
		logger.Error("discord gateway open failed", zap.Error(err))
		return fmt.Errorf("open discord gateway: %w", err)
	}

	if appCfg.PostPanels {
		if err := svc.Interactions.PostPanels(ctx); err != nil {
			// Panels can be reposted on the next start; the bot still works.
			logger.Warn("posting panels failed", zap.Error(err))
		}
	}

	svc.Runner.Start()
	*deps.Services = *svc

	logger.Info("promohub started",
		zap.String("backend", appCfg.StoreBackend),
		zap.Duration("lifecycle_interval", appCfg.LifecycleInterval),
		zap.Bool("operator_api", appCfg.OperatorTokenHash != ""))
	return nil
}
