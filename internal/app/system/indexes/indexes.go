// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called from EnsureSchema at startup. Each ensure* function is
idempotent. Errors are aggregated so every problem is visible and startup
fails fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	sets := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{"promos", promoIndexes()},
		{"identifications", identificationIndexes()},
		{"members", memberIndexes()},
		{"programs", catalogIndexes("programs")},
		{"sites", catalogIndexes("sites")},
		{"audit_events", auditIndexes()},
	}

	var problems []string
	for _, s := range sets {
		if err := ensureIndexSet(ctx, db.Collection(s.collection), s.models, logger); err != nil {
			problems = append(problems, s.collection+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Reconcile a set of desired indexes for one collection                       */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isUnique(b *bool) bool { return b != nil && *b }

func isDuplicateKeyErr(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "E11000")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	existing := map[string]existingIndex{}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing, cur.Err()
}

// ensureIndexSet creates missing indexes, reuses matching ones, and drops and
// recreates an index whose key pattern matches but whose name or uniqueness
// differs.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel, logger *zap.Logger) error {
	existing, err := listExisting(ctx, coll)
	if err != nil {
		// A collection that does not exist yet has no indexes.
		existing = map[string]existingIndex{}
	}

	var errs []string
	for _, m := range models {
		var name string
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}
		sig := keySig(m.Keys.(bson.D))
		log := logger.With(
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", sig),
			zap.Bool("unique", isUnique(unique)),
		)

		if ex, ok := existing[sig]; ok {
			if isUnique(ex.Unique) == isUnique(unique) && (name == "" || ex.Name == name) {
				log.Debug("reusing existing index")
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop %s failed: %v", name, ex.Name, err))
				continue
			}
			log.Info("dropped index for recreation", zap.String("previous", ex.Name))
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && isUnique(unique) {
				errs = append(errs, fmt.Sprintf("%s: cannot create unique index (duplicates present)", name))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			}
			log.Warn("index ensure failed", zap.Error(err))
			continue
		}
		log.Info("index ensured")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func promoIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Role and category names derive from the promo name.
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_promos_nameci"),
		},
		// Start batch: status=pending AND start_date <= now
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "start_date", Value: 1}},
			Options: options.Index().SetName("idx_promos_status_start"),
		},
		// Archive batch: status=active AND end_date < now
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}},
			Options: options.Index().SetName("idx_promos_status_end"),
		},
	}
}

func identificationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "promo_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_idents_promo_created"),
		},
		{
			Keys:    bson.D{{Key: "member_id", Value: 1}, {Key: "promo_id", Value: 1}},
			Options: options.Index().SetName("idx_idents_member_promo"),
		},
	}
}

func memberIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "last_name", Value: 1}, {Key: "first_name", Value: 1}},
			Options: options.Index().SetName("idx_members_names"),
		},
	}
}

func catalogIndexes(collection string) []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_" + collection + "_nameci"),
		},
		{
			Keys:    bson.D{{Key: "active", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_" + collection + "_active_nameci"),
		},
	}
}

func auditIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_ts"),
		},
		{
			Keys:    bson.D{{Key: "promo_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_promo_ts"),
		},
		{
			Keys:    bson.D{{Key: "member_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_member_ts"),
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
			Options: options.Index().SetName("idx_audit_category_type_ts"),
		},
	}
}
