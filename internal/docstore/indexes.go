package docstore

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

// EnsureIndexes creates the indexes both stores rely on. It is idempotent and
// collects every failure so startup can report them together.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var problems []string

	if err := ensureIndexSet(ctx, db.Collection(callsCollection), callIndexes(), logger); err != nil {
		problems = append(problems, callsCollection+": "+err.Error())
	}
	if err := ensureIndexSet(ctx, db.Collection(usersCollection), userIndexes(), logger); err != nil {
		problems = append(problems, usersCollection+": "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func callIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("uniq_call_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "deadline", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_call_deadline"),
		},
		{
			Keys:    bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_call_type_status"),
		},
		{
			Keys:    bson.D{{Key: "featured", Value: 1}},
			Options: options.Index().SetName("idx_call_featured"),
		},
		{
			// Equal weights across the searchable fields.
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "description_text", Value: "text"},
				{Key: "organization", Value: "text"},
				{Key: "eligibility.criteria", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().SetName("text_call_search_v2").SetDefaultLanguage("none"),
		},
	}
}

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("uniq_user_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_user_email").SetUnique(true),
		},
	}
}

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

func isTextIndex(keys bson.D) bool {
	for _, kv := range keys {
		if kv.Value == "text" || kv.Key == "_fts" {
			return true
		}
	}
	return false
}

func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

// ensureIndexSet creates missing indexes and rebuilds ones whose uniqueness
// changed. A collection holds at most one text index, so an existing text
// index is matched by name.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, desired []mongo.IndexModel, logger *zap.Logger) error {
	existing := map[string]existingIndex{}
	var existingText *existingIndex

	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("list indexes: %w", err)
	}
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			logger.Warn("failed to decode existing index", zap.String("collection", coll.Name()), zap.Error(err))
			continue
		}
		if isTextIndex(idx.Key) {
			existingText = &idx
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	_ = cur.Close(ctx)

	var errs []string
	for _, m := range desired {
		keys := m.Keys.(bson.D)
		name := ""
		var unique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				name = *m.Options.Name
			}
			unique = m.Options.Unique
		}

		if isTextIndex(keys) {
			if existingText != nil {
				if existingText.Name == name {
					continue
				}
				if _, err := coll.Indexes().DropOne(ctx, existingText.Name); err != nil {
					errs = append(errs, fmt.Sprintf("%s: drop stale text index: %v", name, err))
					continue
				}
			}
		} else if ex, ok := existing[keySig(keys)]; ok {
			if sameBoolPtr(unique, ex.Unique) {
				continue
			}
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s: drop failed: %v", name, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) {
				errs = append(errs, fmt.Sprintf("%s: cannot create unique index (duplicates present)", name))
			} else {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			}
			continue
		}
		logger.Info("index created",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.String("keys", keySig(keys)))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	return strings.Contains(err.Error(), "E11000")
}
