// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/promohub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Destination settings for a category.
const (
	All = "all" // MongoDB + zap
	DB  = "db"  // MongoDB only
	Log = "log" // zap only
	Off = "off" // disabled
)

// SchedulerActor is the actor recorded for transitions run by the hourly jobs.
const SchedulerActor = "scheduler"

// Config holds audit logging configuration.
type Config struct {
	// Lifecycle controls promo creation, start, archive and batch events.
	Lifecycle string
	// Admission controls identity and identification events.
	Admission string
}

// Sink persists audit events. *audit.Store satisfies it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to the sink (when one is configured) and to zap.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. A nil sink turns every "db" destination
// into a no-op, which is the case for the HTTP API backend.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		sink:   sink,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.PromoID != "" {
		fields = append(fields, zap.String("promo_id", event.PromoID))
	}
	if event.MemberID != "" {
		fields = append(fields, zap.String("member_id", event.MemberID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryLifecycle:
		setting = l.config.Lifecycle
	case audit.CategoryAdmission:
		setting = l.config.Admission
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}

	if (setting == All || setting == DB) && l.sink != nil {
		if err := l.sink.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Lifecycle Events ---

// PromoCreated logs a promo created from the selection form.
func (l *Logger) PromoCreated(ctx context.Context, actorID, promoID, name string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryLifecycle,
		EventType: audit.EventPromoCreated,
		PromoID:   promoID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"name": name},
	})
}

// PromoStarted logs a committed pending → active transition.
func (l *Logger) PromoStarted(ctx context.Context, actorID, promoID, roleID string, granted, grantFailures int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryLifecycle,
		EventType: audit.EventPromoStarted,
		PromoID:   promoID,
		ActorID:   actorID,
		Success:   true,
		Details: map[string]string{
			"role_id":        roleID,
			"granted":        strconv.Itoa(granted),
			"grant_failures": strconv.Itoa(grantFailures),
		},
	})
}

// PromoStartFailed logs a start attempt that left the promo pending.
func (l *Logger) PromoStartFailed(ctx context.Context, actorID, promoID string, err error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryLifecycle,
		EventType:     audit.EventPromoStartFailed,
		PromoID:       promoID,
		ActorID:       actorID,
		Success:       false,
		FailureReason: errString(err),
	})
}

// PromoArchived logs a committed active → archived transition.
func (l *Logger) PromoArchived(ctx context.Context, actorID, promoID string, revoked int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryLifecycle,
		EventType: audit.EventPromoArchived,
		PromoID:   promoID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"revoked": strconv.Itoa(revoked)},
	})
}

// PromoArchiveFailed logs an archive attempt that left the promo active.
func (l *Logger) PromoArchiveFailed(ctx context.Context, actorID, promoID string, err error) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryLifecycle,
		EventType:     audit.EventPromoArchiveFailed,
		PromoID:       promoID,
		ActorID:       actorID,
		Success:       false,
		FailureReason: errString(err),
	})
}

// BatchCompleted logs the summary of one scheduler batch.
func (l *Logger) BatchCompleted(ctx context.Context, batch string, selected, succeeded, failed int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryLifecycle,
		EventType: audit.EventBatchCompleted,
		ActorID:   SchedulerActor,
		Success:   failed == 0,
		Details: map[string]string{
			"batch":     batch,
			"selected":  strconv.Itoa(selected),
			"succeeded": strconv.Itoa(succeeded),
			"failed":    strconv.Itoa(failed),
		},
	})
}

// --- Admission Events ---

// MemberIdentified logs a member registering their name.
func (l *Logger) MemberIdentified(ctx context.Context, memberID string, created bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmission,
		EventType: audit.EventMemberIdentified,
		MemberID:  memberID,
		ActorID:   memberID,
		Success:   true,
		Details:   map[string]string{"created": strconv.FormatBool(created)},
	})
}

// MemberIdentityUpdated logs a member changing their name.
func (l *Logger) MemberIdentityUpdated(ctx context.Context, memberID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmission,
		EventType: audit.EventMemberIdentityUpdated,
		MemberID:  memberID,
		ActorID:   memberID,
		Success:   true,
	})
}

// IdentificationSubmitted logs a new membership request.
func (l *Logger) IdentificationSubmitted(ctx context.Context, memberID, promoID, identificationID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmission,
		EventType: audit.EventIdentificationSubmitted,
		PromoID:   promoID,
		MemberID:  memberID,
		ActorID:   memberID,
		Success:   true,
		Details:   map[string]string{"identification_id": identificationID},
	})
}

// IdentificationDecided logs an operator accepting or rejecting a request.
func (l *Logger) IdentificationDecided(ctx context.Context, actorID, memberID, promoID, identificationID string, accepted bool) {
	eventType := audit.EventIdentificationRejected
	if accepted {
		eventType = audit.EventIdentificationAccepted
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmission,
		EventType: eventType,
		PromoID:   promoID,
		MemberID:  memberID,
		ActorID:   actorID,
		Success:   true,
		Details:   map[string]string{"identification_id": identificationID},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
