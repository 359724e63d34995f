package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"glassmind-quiz-service/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type profileDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Avatar    string    `bson:"avatar"`
	Points    int       `bson:"points"`
	Streak    int       `bson:"streak"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d profileDoc) toDomain() domain.PlayerProfile {
	return domain.PlayerProfile{ID: d.ID, Name: d.Name, Avatar: d.Avatar, Points: d.Points, Streak: d.Streak}
}

// ProfileStore keeps one document per player keyed by player id.
type ProfileStore struct {
	collection *mongo.Collection
}

func NewProfileStore(db *mongo.Database) *ProfileStore {
	return &ProfileStore{collection: db.Collection("profiles")}
}

// EnsureIndexes creates the leaderboard index.
func (s *ProfileStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "points", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create profile index: %w", err)
	}
	return nil
}

func (s *ProfileStore) Get(ctx context.Context, id string) (domain.PlayerProfile, error) {
	var doc profileDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *ProfileStore) Create(ctx context.Context, p domain.PlayerProfile) error {
	now := time.Now().UTC()
	_, err := s.collection.InsertOne(ctx, profileDoc{
		ID:        p.ID,
		Name:      p.Name,
		Avatar:    p.Avatar,
		Points:    p.Points,
		Streak:    p.Streak,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrProfileExists
	}
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) AddPoints(ctx context.Context, id string, amount int) (domain.PlayerProfile, error) {
	var doc profileDoc
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"points": amount, "streak": 1},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.PlayerProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.PlayerProfile{}, fmt.Errorf("add points: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *ProfileStore) ResetStreak(ctx context.Context, id string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"streak": 0, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (s *ProfileStore) Top(ctx context.Context, limit int) ([]domain.PlayerProfile, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "points", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	defer cur.Close(ctx)

	var docs []profileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	out := make([]domain.PlayerProfile, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (s *ProfileStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}
