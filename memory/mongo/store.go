// Package mongo wires memory.Store to a MongoDB collection using
// go.mongodb.org/mongo-driver/v2, for callers that need a run's log to
// survive process restarts (§4.D).
package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/loopforge/agentrun/memory"
	"github.com/loopforge/agentrun/message"
)

// Options configures the Store.
type Options struct {
	// Client is a connected Mongo client. Required.
	Client *mongo.Client
	// Database names the database holding the run-log collection.
	// Defaults to "agentrun".
	Database string
	// Collection names the collection holding run-log documents.
	// Defaults to "run_messages".
	Collection string
}

// Store implements memory.Store over a Mongo collection. Each document is
// one message, tagged with its run ID and an append-order sequence
// number so Load can reconstruct the log in order without relying on
// natural insertion order.
type Store struct {
	coll *mongo.Collection
}

type doc struct {
	RunID    string `bson:"run_id"`
	Sequence int64  `bson:"sequence"`
	Record   bson.M `bson:"record"`
}

// NewStore builds a Mongo-backed Store and ensures the (run_id, sequence)
// index used by Load exists.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo: client is required")
	}
	database := opts.Database
	if database == "" {
		database = "agentrun"
	}
	collection := opts.Collection
	if collection == "" {
		collection = "run_messages"
	}
	coll := opts.Client.Database(database).Collection(collection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "sequence", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	return &Store{coll: coll}, nil
}

// Append inserts msgs as new documents, assigning each the next sequence
// number after runID's current log length.
func (s *Store) Append(ctx context.Context, runID string, msgs ...message.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	count, err := s.coll.CountDocuments(ctx, bson.M{"run_id": runID})
	if err != nil {
		return err
	}
	docs := make([]any, len(msgs))
	for i, m := range msgs {
		raw, err := message.MarshalStorage(m)
		if err != nil {
			return err
		}
		var record bson.M
		if err := bson.UnmarshalExtJSON(raw, true, &record); err != nil {
			return err
		}
		docs[i] = doc{RunID: runID, Sequence: count + int64(i), Record: record}
	}
	_, err = s.coll.InsertMany(ctx, docs)
	return err
}

// Load returns runID's log ordered by sequence.
func (s *Store) Load(ctx context.Context, runID string) ([]message.Message, error) {
	cur, err := s.coll.Find(ctx, bson.M{"run_id": runID}, options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []message.Message
	for cur.Next(ctx) {
		var d doc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		raw, err := bson.MarshalExtJSON(d.Record, true, true)
		if err != nil {
			return nil, err
		}
		msg, err := message.UnmarshalStorage(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset deletes every document for runID.
func (s *Store) Reset(ctx context.Context, runID string) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"run_id": runID})
	return err
}

// Len returns the number of documents stored for runID via a count query,
// without materializing the log.
func (s *Store) Len(ctx context.Context, runID string) (int, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"run_id": runID})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// ApproxTokenCount loads runID's log and delegates to memory.ApproxTokenCount.
func (s *Store) ApproxTokenCount(ctx context.Context, runID string) (int, error) {
	log, err := s.Load(ctx, runID)
	if err != nil {
		return 0, err
	}
	return memory.ApproxTokenCount(log), nil
}
