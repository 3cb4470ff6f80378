package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
)

// CreateEvent persists an event. The unique sparse index on idempotency_key
// turns concurrent duplicates into a duplicate-key error.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	_, err := s.db.Collection(colEvents).InsertOne(ctx, toEventModel(evt))
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return event.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("partnergate/mongo: create event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel
	err := s.db.Collection(colEvents).
		FindOne(ctx, bson.M{"_id": evtID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, event.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/mongo: get event: %w", err)
	}
	return fromEventModel(&m)
}

// ListEventsByPartner returns events targeting a specific partner.
func (s *Store) ListEventsByPartner(ctx context.Context, partnerID id.ID, opts event.ListOpts) ([]*event.Event, error) {
	filter := bson.M{"partner_id": partnerID.String()}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.From != nil || opts.To != nil {
		rng := bson.M{}
		if opts.From != nil {
			rng["$gte"] = *opts.From
		}
		if opts.To != nil {
			rng["$lte"] = *opts.To
		}
		filter["occurred_at"] = rng
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cur, err := s.db.Collection(colEvents).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("partnergate/mongo: list events: %w", err)
	}
	defer cur.Close(ctx)

	var result []*event.Event
	for cur.Next(ctx) {
		var m eventModel
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("partnergate/mongo: decode event: %w", err)
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}
	return result, cur.Err()
}
