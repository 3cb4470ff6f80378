package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/id"
)

// Enqueue creates a pending delivery.
func (s *Store) Enqueue(ctx context.Context, d *dispatch.Delivery) error {
	if _, err := s.db.Collection(colDeliveries).InsertOne(ctx, toDeliveryModel(d)); err != nil {
		return fmt.Errorf("partnergate/mongo: enqueue: %w", err)
	}
	return nil
}

// Claim fetches due deliveries and marks them in_flight. FindOneAndUpdate
// makes each claim atomic, so concurrent claimers never take the same
// delivery.
func (s *Store) Claim(ctx context.Context, t time.Time, limit int) ([]*dispatch.Delivery, error) {
	result := make([]*dispatch.Delivery, 0, limit)
	col := s.db.Collection(colDeliveries)

	for range limit {
		filter := bson.M{
			"state": bson.M{"$in": bson.A{
				string(dispatch.StatePending),
				string(dispatch.StateRetryScheduled),
			}},
			"next_attempt_at": bson.M{"$lte": t},
		}
		update := bson.M{"$set": bson.M{
			"state":      string(dispatch.StateInFlight),
			"updated_at": now(),
		}}
		opts := options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetSort(bson.D{{Key: "next_attempt_at", Value: 1}})

		var m deliveryModel
		err := col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if err != nil {
			if isNoDocuments(err) {
				break
			}
			return nil, fmt.Errorf("partnergate/mongo: claim: %w", err)
		}

		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// UpdateDelivery persists a delivery's state after an attempt.
func (s *Store) UpdateDelivery(ctx context.Context, d *dispatch.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()

	res, err := s.db.Collection(colDeliveries).
		ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("partnergate/mongo: update delivery: %w", err)
	}
	if res.MatchedCount == 0 {
		return dispatch.ErrDeliveryNotFound
	}
	return nil
}

// GetDelivery returns a delivery by ID.
func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*dispatch.Delivery, error) {
	var m deliveryModel
	err := s.db.Collection(colDeliveries).
		FindOne(ctx, bson.M{"_id": delID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, dispatch.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("partnergate/mongo: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

// ListDeliveriesByEvent returns all deliveries for a specific event.
func (s *Store) ListDeliveriesByEvent(ctx context.Context, evtID id.ID) ([]*dispatch.Delivery, error) {
	return s.findDeliveries(ctx, bson.M{"event_id": evtID.String()}, nil)
}

// ListDeliveriesByPartner returns delivery history for a partner.
func (s *Store) ListDeliveriesByPartner(ctx context.Context, partnerID id.ID, opts dispatch.ListOpts) ([]*dispatch.Delivery, error) {
	filter := bson.M{"partner_id": partnerID.String()}
	if opts.State != nil {
		filter["state"] = string(*opts.State)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}
	return s.findDeliveries(ctx, filter, findOpts)
}

func (s *Store) findDeliveries(ctx context.Context, filter bson.M, findOpts *options.FindOptionsBuilder) ([]*dispatch.Delivery, error) {
	col := s.db.Collection(colDeliveries)

	var (
		cur *mongod.Cursor
		err error
	)
	if findOpts != nil {
		cur, err = col.Find(ctx, filter, findOpts)
	} else {
		cur, err = col.Find(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("partnergate/mongo: list deliveries: %w", err)
	}
	defer cur.Close(ctx)

	var result []*dispatch.Delivery
	for cur.Next(ctx) {
		var m deliveryModel
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("partnergate/mongo: decode delivery: %w", err)
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, cur.Err()
}

// CountDue returns the number of deliveries due at or before t.
func (s *Store) CountDue(ctx context.Context, t time.Time) (int64, error) {
	count, err := s.db.Collection(colDeliveries).CountDocuments(ctx, bson.M{
		"state": bson.M{"$in": bson.A{
			string(dispatch.StatePending),
			string(dispatch.StateRetryScheduled),
		}},
		"next_attempt_at": bson.M{"$lte": t},
	})
	if err != nil {
		return 0, fmt.Errorf("partnergate/mongo: count due: %w", err)
	}
	return count, nil
}
