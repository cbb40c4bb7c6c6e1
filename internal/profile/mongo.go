package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "profiles"

// MongoStore keeps profiles in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo dials uri and returns a store on database db.
func ConnectMongo(ctx context.Context, uri, db string) (*MongoStore, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("profile: mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cli.Ping(pingCtx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("profile: mongo ping: %w", err)
	}
	return &MongoStore{client: cli, coll: cli.Database(db).Collection(collection)}, nil
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) Get(ctx context.Context, email string) (*Profile, error) {
	var p Profile
	err := s.coll.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: find: %w", err)
	}
	return &p, nil
}

func (s *MongoStore) Upsert(ctx context.Context, p Profile) error {
	p.Email = NormalizeEmail(p.Email)
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"email": p.Email},
		bson.M{"$set": p},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("profile: upsert: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
