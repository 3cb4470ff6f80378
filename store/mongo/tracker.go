package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/tracker"
)

// RecordAttempt appends a delivery attempt.
func (s *Store) RecordAttempt(ctx context.Context, a *tracker.Attempt) error {
	if _, err := s.db.Collection(colAttempts).InsertOne(ctx, toAttemptModel(a)); err != nil {
		return fmt.Errorf("partnergate/mongo: record attempt: %w", err)
	}
	return nil
}

// ListAttemptsByDelivery returns attempts for a delivery in attempt order.
func (s *Store) ListAttemptsByDelivery(ctx context.Context, deliveryID id.ID) ([]*tracker.Attempt, error) {
	return s.findAttempts(ctx,
		bson.M{"delivery_id": deliveryID.String()},
		bson.D{{Key: "number", Value: 1}})
}

// ListAttemptsByPartnerSince returns a partner's attempts recorded at or
// after since.
func (s *Store) ListAttemptsByPartnerSince(ctx context.Context, partnerID id.ID, since time.Time) ([]*tracker.Attempt, error) {
	return s.findAttempts(ctx,
		bson.M{
			"partner_id": partnerID.String(),
			"created_at": bson.M{"$gte": since},
		},
		bson.D{{Key: "created_at", Value: 1}})
}

func (s *Store) findAttempts(ctx context.Context, filter bson.M, sort bson.D) ([]*tracker.Attempt, error) {
	cur, err := s.db.Collection(colAttempts).Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("partnergate/mongo: list attempts: %w", err)
	}
	defer cur.Close(ctx)

	var result []*tracker.Attempt
	for cur.Next(ctx) {
		var m attemptModel
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("partnergate/mongo: decode attempt: %w", err)
		}
		a, err := fromAttemptModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, cur.Err()
}

// IncrRequestCount bumps the partner's admitted-request counter for the day
// containing at, upserting the daily document.
func (s *Store) IncrRequestCount(ctx context.Context, partnerID id.ID, at time.Time) error {
	day := at.UTC().Format("2006-01-02")
	_, err := s.db.Collection(colRequestCounts).UpdateOne(ctx,
		bson.M{"_id": partnerID.String() + ":" + day},
		bson.M{
			"$inc": bson.M{"count": 1},
			"$setOnInsert": bson.M{
				"partner_id": partnerID.String(),
				"day":        day,
			},
		},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("partnergate/mongo: incr request count: %w", err)
	}
	return nil
}

// RequestCountSince sums the partner's daily request counters from since
// to now.
func (s *Store) RequestCountSince(ctx context.Context, partnerID id.ID, since time.Time) (int64, error) {
	cur, err := s.db.Collection(colRequestCounts).Find(ctx, bson.M{
		"partner_id": partnerID.String(),
		"day":        bson.M{"$gte": since.UTC().Format("2006-01-02")},
	})
	if err != nil {
		return 0, fmt.Errorf("partnergate/mongo: request count: %w", err)
	}
	defer cur.Close(ctx)

	var total int64
	for cur.Next(ctx) {
		var m requestCountModel
		if err := cur.Decode(&m); err != nil {
			return 0, fmt.Errorf("partnergate/mongo: decode request count: %w", err)
		}
		total += m.Count
	}
	return total, cur.Err()
}
