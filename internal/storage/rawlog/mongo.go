package rawlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/JustJay7/pje-capture/internal/capturelog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const Collection = "capture_raw_logs"

type MongoStore struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// ConnectMongo connects and pings the server before returning
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return &MongoStore{Client: client, Database: client.Database(database)}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	if s.Client != nil {
		return s.Client.Disconnect(ctx)
	}
	return nil
}

type mongoEntry struct {
	RunID          string      `bson:"run_id"`
	CaptureType    string      `bson:"capture_type"`
	Court          string      `bson:"court"`
	Instance       string      `bson:"instance"`
	CaseExternalID int64       `bson:"case_external_id,omitempty"`
	Status         string      `bson:"status"`
	Payload        string      `bson:"payload,omitempty"`
	Entries        []mongoLine `bson:"entries,omitempty"`
	Error          string      `bson:"error,omitempty"`
	CreatedAt      time.Time   `bson:"created_at"`
}

type mongoLine struct {
	Time    time.Time `bson:"time"`
	Entity  string    `bson:"entity"`
	Key     string    `bson:"key"`
	Outcome string    `bson:"outcome"`
	Fields  []string  `bson:"fields,omitempty"`
	Reason  string    `bson:"reason,omitempty"`
	Error   string    `bson:"error,omitempty"`
}

func (s *MongoStore) Append(ctx context.Context, e Entry) error {
	if s == nil || s.Database == nil {
		return mongo.ErrClientDisconnected
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	lines := make(bson.A, 0, len(e.Entries))
	for _, l := range e.Entries {
		lines = append(lines, bson.D{
			{Key: "time", Value: l.Time},
			{Key: "entity", Value: l.Entity},
			{Key: "key", Value: l.Key},
			{Key: "outcome", Value: string(l.Outcome)},
			{Key: "fields", Value: l.Fields},
			{Key: "reason", Value: l.Reason},
			{Key: "error", Value: l.Error},
		})
	}

	doc := bson.D{
		{Key: "run_id", Value: e.RunID},
		{Key: "capture_type", Value: e.CaptureType},
		{Key: "court", Value: e.Court},
		{Key: "instance", Value: e.Instance},
		{Key: "case_external_id", Value: e.CaseExternalID},
		{Key: "status", Value: e.Status},
		{Key: "payload", Value: string(e.Payload)},
		{Key: "entries", Value: lines},
		{Key: "error", Value: e.Error},
		{Key: "created_at", Value: e.CreatedAt},
	}
	if _, err := s.Database.Collection(Collection).InsertOne(ctx, doc, options.InsertOne()); err != nil {
		return fmt.Errorf("insert raw log: %w", err)
	}
	return nil
}

func (s *MongoStore) ListByRun(ctx context.Context, runID string) ([]Entry, error) {
	if s == nil || s.Database == nil {
		return nil, mongo.ErrClientDisconnected
	}

	cur, err := s.Database.Collection(Collection).Find(ctx,
		bson.M{"run_id": runID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find raw logs: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoEntry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode raw logs: %w", err)
	}

	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entry())
	}
	return out, nil
}

func (d mongoEntry) entry() Entry {
	e := Entry{
		RunID:          d.RunID,
		CaptureType:    d.CaptureType,
		Court:          d.Court,
		Instance:       d.Instance,
		CaseExternalID: d.CaseExternalID,
		Status:         d.Status,
		Error:          d.Error,
		CreatedAt:      d.CreatedAt,
	}
	if d.Payload != "" {
		e.Payload = json.RawMessage(d.Payload)
	}
	for _, l := range d.Entries {
		e.Entries = append(e.Entries, capturelog.Entry{
			Time:    l.Time,
			Entity:  l.Entity,
			Key:     l.Key,
			Outcome: capturelog.Outcome(l.Outcome),
			Fields:  l.Fields,
			Reason:  l.Reason,
			Error:   l.Error,
		})
	}
	return e
}
