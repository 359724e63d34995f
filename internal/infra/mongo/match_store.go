package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"glassmind-quiz-service/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type questionDoc struct {
	ID                 string   `bson:"id"`
	Text               string   `bson:"text"`
	Options            []string `bson:"options"`
	CorrectAnswerIndex int      `bson:"correctAnswerIndex"`
	Explanation        string   `bson:"explanation"`
}

type matchDoc struct {
	ID           string        `bson:"_id"`
	Code         string        `bson:"code"`
	Topic        string        `bson:"topic"`
	Status       string        `bson:"status"`
	Player1ID    string        `bson:"player1Id"`
	Player2ID    string        `bson:"player2Id,omitempty"`
	Player1Score int           `bson:"player1Score"`
	Player2Score int           `bson:"player2Score"`
	Questions    []questionDoc `bson:"questions"`
	CreatedAt    time.Time     `bson:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt"`
}

func toMatchDoc(m domain.Match) matchDoc {
	questions := make([]questionDoc, len(m.Questions))
	for i, q := range m.Questions {
		questions[i] = questionDoc(q)
	}
	return matchDoc{
		ID:           m.ID,
		Code:         m.Code,
		Topic:        m.Topic,
		Status:       string(m.Status),
		Player1ID:    m.Player1ID,
		Player2ID:    m.Player2ID,
		Player1Score: m.Player1Score,
		Player2Score: m.Player2Score,
		Questions:    questions,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func (d matchDoc) toDomain() domain.Match {
	questions := make([]domain.Question, len(d.Questions))
	for i, q := range d.Questions {
		questions[i] = domain.Question(q)
	}
	return domain.Match{
		ID:           d.ID,
		Code:         d.Code,
		Topic:        d.Topic,
		Status:       domain.MatchStatus(d.Status),
		Player1ID:    d.Player1ID,
		Player2ID:    d.Player2ID,
		Player1Score: d.Player1Score,
		Player2Score: d.Player2Score,
		Questions:    questions,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// MatchStore keeps matches as documents. Claims are FindOneAndUpdate calls whose
// filter requires status "waiting", which MongoDB applies atomically per document.
type MatchStore struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

func NewMatchStore(db *mongo.Database, logger *slog.Logger) *MatchStore {
	return &MatchStore{collection: db.Collection("matches"), logger: logger}
}

// EnsureIndexes creates the lookup indexes for join codes and open matches.
func (s *MatchStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "player1Id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create match indexes: %w", err)
	}
	return nil
}

func (s *MatchStore) Insert(ctx context.Context, m domain.Match) error {
	if _, err := s.collection.InsertOne(ctx, toMatchDoc(m)); err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *MatchStore) Get(ctx context.Context, id string) (domain.Match, error) {
	return s.findOne(ctx, bson.M{"_id": id}, nil, domain.ErrMatchNotFound)
}

func (s *MatchStore) FindByCode(ctx context.Context, code string) (domain.Match, error) {
	return s.findOne(ctx, bson.M{"code": code}, newestFirst(), domain.ErrMatchNotFound)
}

func (s *MatchStore) FindWaiting(ctx context.Context, excludeHost string) (domain.Match, error) {
	filter := bson.M{"status": string(domain.MatchWaiting), "player1Id": bson.M{"$ne": excludeHost}}
	return s.findOne(ctx, filter, newestFirst(), domain.ErrNoOpenMatch)
}

func (s *MatchStore) CodeInUse(ctx context.Context, code string) (bool, error) {
	n, err := s.collection.CountDocuments(ctx,
		bson.M{"code": code, "status": string(domain.MatchWaiting)},
		options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return n > 0, nil
}

func (s *MatchStore) Claim(ctx context.Context, matchID, playerID string) (domain.Match, error) {
	filter := bson.M{
		"_id":       matchID,
		"status":    string(domain.MatchWaiting),
		"player1Id": bson.M{"$ne": playerID},
	}
	m, err := s.claim(ctx, filter, playerID, options.FindOneAndUpdate())
	if !errors.Is(err, domain.ErrMatchUnavailable) {
		return m, err
	}

	current, getErr := s.Get(ctx, matchID)
	switch {
	case getErr != nil:
		return domain.Match{}, getErr
	case current.Player1ID == playerID:
		return domain.Match{}, domain.ErrOwnMatch
	}
	return domain.Match{}, domain.ErrMatchUnavailable
}

func (s *MatchStore) ClaimByCode(ctx context.Context, code, playerID string) (domain.Match, error) {
	filter := bson.M{
		"code":      code,
		"status":    string(domain.MatchWaiting),
		"player1Id": bson.M{"$ne": playerID},
	}
	return s.claim(ctx, filter, playerID, options.FindOneAndUpdate().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (s *MatchStore) UpdateScore(ctx context.Context, matchID string, slot domain.Slot, score int) (domain.Match, error) {
	field := "player1Score"
	if slot == domain.SlotPlayer2 {
		field = "player2Score"
	}
	var doc matchDoc
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": matchID},
		bson.M{"$set": bson.M{field: score, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("update score: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *MatchStore) SetStatus(ctx context.Context, matchID string, status domain.MatchStatus) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": matchID},
		bson.M{"$set": bson.M{"status": string(status), "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("set match status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}

func (s *MatchStore) DeleteWaitingByHost(ctx context.Context, playerID string) (int, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{"player1Id": playerID, "status": string(domain.MatchWaiting)})
	if err != nil {
		return 0, fmt.Errorf("delete waiting matches: %w", err)
	}
	return int(res.DeletedCount), nil
}

// Subscribe follows the match through a change stream. Change streams need a replica
// set; on a standalone server Watch fails and callers fall back to polling.
func (s *MatchStore) Subscribe(ctx context.Context, matchID string) (<-chan domain.Match, func(), error) {
	initial, err := s.Get(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}

	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"documentKey._id": matchID}}}}
	stream, err := s.collection.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, nil, fmt.Errorf("watch match: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	out := make(chan domain.Match, 8)
	out <- initial

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		defer stream.Close(context.Background())
		for stream.Next(subCtx) {
			var event struct {
				FullDocument *matchDoc `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil || event.FullDocument == nil {
				continue
			}
			sendLatest(out, event.FullDocument.toDomain())
		}
		if err := stream.Err(); err != nil && subCtx.Err() == nil {
			s.logger.Warn("match change stream ended", slog.String("match", matchID), slog.Any("error", err))
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
	return out, stop, nil
}

func (s *MatchStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

func (s *MatchStore) claim(ctx context.Context, filter bson.M, playerID string, opts *options.FindOneAndUpdateOptions) (domain.Match, error) {
	var doc matchDoc
	err := s.collection.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": bson.M{
			"player2Id": playerID,
			"status":    string(domain.MatchPlaying),
			"updatedAt": time.Now().UTC(),
		}},
		opts.SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Match{}, domain.ErrMatchUnavailable
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("claim match: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *MatchStore) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions, notFound error) (domain.Match, error) {
	if opts == nil {
		opts = options.FindOne()
	}
	var doc matchDoc
	err := s.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Match{}, notFound
	}
	if err != nil {
		return domain.Match{}, fmt.Errorf("find match: %w", err)
	}
	return doc.toDomain(), nil
}

func newestFirst() *options.FindOneOptions {
	return options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
}

func sendLatest(ch chan domain.Match, m domain.Match) {
	select {
	case ch <- m:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- m
	}
}
