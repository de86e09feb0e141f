package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ujpm/GGH-website-sub000/internal/funding"
	"github.com/ujpm/GGH-website-sub000/internal/models"
)

// FundingStore is the MongoDB funding.Repository. Documents keep the
// driver-generated ObjectID as _id, which orders ties by insertion.
type FundingStore struct {
	c *mongo.Collection
}

func NewFundingStore(db *mongo.Database) *FundingStore {
	return &FundingStore{c: db.Collection(callsCollection)}
}

var _ funding.Repository = (*FundingStore)(nil)

var sortFields = map[string]string{
	funding.SortDeadline:     "deadline",
	funding.SortCreatedAt:    "created_at",
	funding.SortUpdatedAt:    "updated_at",
	funding.SortPublishedAt:  "published_at",
	funding.SortTitle:        "title",
	funding.SortOrganization: "organization",
	funding.SortType:         "type",
	funding.SortStatus:       "status",
	funding.SortFeatured:     "featured",
}

func (s *FundingStore) Insert(ctx context.Context, call *models.FundingCall) error {
	if _, err := s.c.InsertOne(ctx, call); err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}
	return nil
}

func (s *FundingStore) Get(ctx context.Context, id string) (*models.FundingCall, error) {
	var call models.FundingCall
	err := s.c.FindOne(ctx, bson.M{"id": id}).Decode(&call)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, funding.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	normalizeTimes(&call)
	return &call, nil
}

// Replace swaps the document body. The version predicate, when present, is
// part of the same filter so the check and write are atomic.
func (s *FundingStore) Replace(ctx context.Context, call *models.FundingCall, expectedVersion int) error {
	filter := bson.M{"id": call.ID}
	if expectedVersion > 0 {
		filter["version"] = expectedVersion
	}
	res, err := s.c.ReplaceOne(ctx, filter, call)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if expectedVersion > 0 {
		n, err := s.c.CountDocuments(ctx, bson.M{"id": call.ID}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("update failed: %w", err)
		}
		if n > 0 {
			return funding.ErrVersionConflict
		}
	}
	return funding.ErrNotFound
}

func (s *FundingStore) Delete(ctx context.Context, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return funding.ErrNotFound
	}
	return nil
}

func (s *FundingStore) UpdateStatus(ctx context.Context, id string, status models.Status) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("status update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return funding.ErrNotFound
	}
	return nil
}

func (s *FundingStore) Count(ctx context.Context, f funding.Filter) (int, error) {
	n, err := s.c.CountDocuments(ctx, buildFilter(f))
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return int(n), nil
}

func (s *FundingStore) Find(ctx context.Context, f funding.Filter, order funding.Sort, skip, limit int) ([]models.FundingCall, error) {
	opts := options.Find().
		SetSort(buildSort(order)).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := s.c.Find(ctx, buildFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer cur.Close(ctx)

	calls := []models.FundingCall{}
	if err := cur.All(ctx, &calls); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	for i := range calls {
		normalizeTimes(&calls[i])
	}
	return calls, nil
}

// buildFilter translates a funding.Filter to a query document. Each search
// term is quoted so $text requires all of them instead of any.
func buildFilter(f funding.Filter) bson.M {
	q := bson.M{}
	if f.Type != nil {
		q["type"] = string(*f.Type)
	}
	if f.Status != nil {
		q["status"] = string(*f.Status)
	}
	if f.Featured != nil {
		q["featured"] = *f.Featured
	}
	if search := textSearch(f.Search); search != "" {
		q["$text"] = bson.M{"$search": search, "$caseSensitive": false}
	}
	return q
}

func textSearch(raw string) string {
	terms := strings.Fields(strings.ReplaceAll(raw, `"`, " "))
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " ")
}

func buildSort(order funding.Sort) bson.D {
	field, ok := sortFields[order.Field]
	if !ok {
		field = "deadline"
	}
	dir := 1
	if order.Desc {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: 1}}
}

// BSON datetimes decode in the local zone.
func normalizeTimes(c *models.FundingCall) {
	c.Deadline = c.Deadline.UTC()
	c.PublishedAt = c.PublishedAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
}
