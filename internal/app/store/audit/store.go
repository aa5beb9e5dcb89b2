// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryLifecycle = "lifecycle"
	CategoryAdmission = "admission"
)

// Lifecycle event types
const (
	EventPromoCreated       = "promo_created"
	EventPromoStarted       = "promo_started"
	EventPromoStartFailed   = "promo_start_failed"
	EventPromoArchived      = "promo_archived"
	EventPromoArchiveFailed = "promo_archive_failed"
	EventBatchCompleted     = "batch_completed"
)

// Admission event types
const (
	EventMemberIdentified        = "member_identified"
	EventMemberIdentityUpdated   = "member_identity_updated"
	EventIdentificationSubmitted = "identification_submitted"
	EventIdentificationAccepted  = "identification_accepted"
	EventIdentificationRejected  = "identification_rejected"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// What and who
	PromoID  string `bson:"promo_id,omitempty"`
	MemberID string `bson:"member_id,omitempty"` // affected member
	ActorID  string `bson:"actor_id,omitempty"`  // operator or scheduler that acted

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	PromoID   string
	MemberID  string
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.PromoID != "" {
		query["promo_id"] = filter.PromoID
	}
	if filter.MemberID != "" {
		query["member_id"] = filter.MemberID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// GetByPromo retrieves recent audit events for a promo.
func (s *Store) GetByPromo(ctx context.Context, promoID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{PromoID: promoID, Limit: limit})
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}
