package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/voicemap/server/domain/entities"
	"github.com/satriahrh/voicemap/server/domain/repositories"
)

// Collection names
const (
	sessionsCollection    = "sessions"
	transcriptsCollection = "transcripts"
	llmResultsCollection  = "llm_results"
	mindMapsCollection    = "mind_maps"
	settingsCollection    = "user_settings"
	countersCollection    = "counters"
)

// Store implements repositories.Storage on MongoDB. Transcripts, LLM results
// and mind maps get sequential int64 ids from a counters collection.
type Store struct {
	client      *Client
	sessions    *mongo.Collection
	transcripts *mongo.Collection
	llmResults  *mongo.Collection
	mindMaps    *mongo.Collection
	settings    *mongo.Collection
	counters    *mongo.Collection
	logger      *zap.Logger
}

var _ repositories.Storage = (*Store)(nil)

// NewStore creates the store and ensures its indexes
func NewStore(ctx context.Context, client *Client, logger *zap.Logger) (*Store, error) {
	db := client.Database
	s := &Store{
		client:      client,
		sessions:    db.Collection(sessionsCollection),
		transcripts: db.Collection(transcriptsCollection),
		llmResults:  db.Collection(llmResultsCollection),
		mindMaps:    db.Collection(mindMapsCollection),
		settings:    db.Collection(settingsCollection),
		counters:    db.Collection(countersCollection),
		logger:      logger,
	}

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.sessions: {
			{Keys: bson.D{{Key: "last_activity", Value: -1}}},
		},
		s.transcripts: {
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "processed_at", Value: 1}}},
		},
		s.llmResults: {
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "transcript_id", Value: 1}}},
		},
		s.mindMaps: {
			{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "_id", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return nil, fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return s, nil
}

// Close disconnects the underlying client
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Close(ctx)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, repositories.ErrStorage, err)
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, repositories.ErrNotFound)
}

func nextID(ctx context.Context, counters *mongo.Collection, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).Decode(&doc)
	if err != nil {
		return 0, storageErr("next id for "+name, err)
	}
	return doc.Seq, nil
}

func pageOptions(limit, offset int) *options.FindOptions {
	return options.Find().SetLimit(int64(limit)).SetSkip(int64(offset))
}

func decodeAll[T any](ctx context.Context, cursor *mongo.Cursor, op string) ([]*T, error) {
	defer cursor.Close(ctx)
	out := []*T{}
	for cursor.Next(ctx) {
		var v T
		if err := cursor.Decode(&v); err != nil {
			return nil, storageErr(op, err)
		}
		out = append(out, &v)
	}
	if err := cursor.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

// Sessions

// Create inserts a new session
func (s *Store) Create(ctx context.Context, session *entities.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return storageErr("create session", err)
	}
	return nil
}

// Get returns one session
func (s *Store) Get(ctx context.Context, id string) (*entities.Session, error) {
	var session entities.Session
	err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("session", id)
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}
	return &session, nil
}

// List returns sessions ordered by last activity, newest first
func (s *Store) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*entities.Session, error) {
	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	cursor, err := s.sessions.Find(ctx, filter, pageOptions(limit, offset).SetSort(bson.D{{Key: "last_activity", Value: -1}}))
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	return decodeAll[entities.Session](ctx, cursor, "list sessions")
}

func (s *Store) updateSession(ctx context.Context, op, id string, set bson.M) error {
	set["last_activity"] = time.Now().UTC()
	result, err := s.sessions.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return storageErr(op, err)
	}
	if result.MatchedCount == 0 {
		return notFound("session", id)
	}
	return nil
}

// Update persists name and description and bumps last activity
func (s *Store) Update(ctx context.Context, session *entities.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	return s.updateSession(ctx, "update session", session.ID, bson.M{
		"name":        session.Name,
		"description": session.Description,
	})
}

// Touch sets last activity to now
func (s *Store) Touch(ctx context.Context, id string) error {
	return s.updateSession(ctx, "touch session", id, bson.M{})
}

// SetActive activates or deactivates a session
func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	return s.updateSession(ctx, "set session active", id, bson.M{"is_active": active})
}

// Transcripts

// CreateTranscript inserts a transcript and sets its id
func (s *Store) CreateTranscript(ctx context.Context, t *entities.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	id, err := nextID(ctx, s.counters, transcriptsCollection)
	if err != nil {
		return err
	}
	t.ID = id
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if _, err := s.transcripts.InsertOne(ctx, t); err != nil {
		return storageErr("create transcript", err)
	}
	return nil
}

// ListTranscripts returns one page of a session's transcripts, newest first
func (s *Store) ListTranscripts(ctx context.Context, sessionID string, limit, offset int) ([]*entities.Transcript, error) {
	cursor, err := s.transcripts.Find(ctx, bson.M{"session_id": sessionID},
		pageOptions(limit, offset).SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return nil, storageErr("list transcripts", err)
	}
	return decodeAll[entities.Transcript](ctx, cursor, "list transcripts")
}

// AllTranscripts returns every transcript of a session in chronological order
func (s *Store) AllTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error) {
	cursor, err := s.transcripts.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storageErr("all transcripts", err)
	}
	return decodeAll[entities.Transcript](ctx, cursor, "all transcripts")
}

// UnprocessedTranscripts returns transcripts never consumed by a summary, oldest first
func (s *Store) UnprocessedTranscripts(ctx context.Context, sessionID string) ([]*entities.Transcript, error) {
	filter := bson.M{"processed_at": nil}
	if sessionID != "" {
		filter["session_id"] = sessionID
	}
	cursor, err := s.transcripts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, storageErr("unprocessed transcripts", err)
	}
	return decodeAll[entities.Transcript](ctx, cursor, "unprocessed transcripts")
}

// MarkProcessed sets processed_at on the given transcripts
func (s *Store) MarkProcessed(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.transcripts.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"processed_at": at.UTC()}})
	if err != nil {
		return storageErr("mark transcripts processed", err)
	}
	return nil
}

// LLM results

// CreateLLMResult inserts an LLM result and sets its id
func (s *Store) CreateLLMResult(ctx context.Context, r *entities.LLMResult) error {
	id, err := nextID(ctx, s.counters, llmResultsCollection)
	if err != nil {
		return err
	}
	r.ID = id
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if _, err := s.llmResults.InsertOne(ctx, r); err != nil {
		return storageErr("create llm result", err)
	}
	return nil
}

// TranscriptLLMResults returns the results anchored to a transcript, newest first
func (s *Store) TranscriptLLMResults(ctx context.Context, transcriptID int64) ([]*entities.LLMResult, error) {
	cursor, err := s.llmResults.Find(ctx, bson.M{"transcript_id": transcriptID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return nil, storageErr("transcript llm results", err)
	}
	return decodeAll[entities.LLMResult](ctx, cursor, "transcript llm results")
}

// SessionLLMResults returns one page of a session's results, newest first
func (s *Store) SessionLLMResults(ctx context.Context, sessionID string, limit, offset int) ([]*entities.LLMResult, error) {
	cursor, err := s.llmResults.Find(ctx, bson.M{"session_id": sessionID},
		pageOptions(limit, offset).SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return nil, storageErr("session llm results", err)
	}
	return decodeAll[entities.LLMResult](ctx, cursor, "session llm results")
}

// Mind maps

// CreateMindMap inserts a complete mind map and sets its id
func (s *Store) CreateMindMap(ctx context.Context, m *entities.MindMap) error {
	if err := m.Validate(); err != nil {
		return err
	}
	id, err := nextID(ctx, s.counters, mindMapsCollection)
	if err != nil {
		return err
	}
	m.ID = id
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := s.mindMaps.InsertOne(ctx, m); err != nil {
		return storageErr("create mind map", err)
	}
	return nil
}

// GetMindMap returns one mind map
func (s *Store) GetMindMap(ctx context.Context, id int64) (*entities.MindMap, error) {
	var m entities.MindMap
	err := s.mindMaps.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("mind map", id)
	}
	if err != nil {
		return nil, storageErr("get mind map", err)
	}
	return &m, nil
}

// SessionMindMaps returns one page of a session's mind maps, newest first
func (s *Store) SessionMindMaps(ctx context.Context, sessionID string, limit, offset int) ([]*entities.MindMap, error) {
	cursor, err := s.mindMaps.Find(ctx, bson.M{"session_id": sessionID},
		pageOptions(limit, offset).SetSort(bson.D{{Key: "_id", Value: -1}}))
	if err != nil {
		return nil, storageErr("session mind maps", err)
	}
	return decodeAll[entities.MindMap](ctx, cursor, "session mind maps")
}

// DeleteMindMap removes a mind map
func (s *Store) DeleteMindMap(ctx context.Context, id int64) error {
	result, err := s.mindMaps.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return storageErr("delete mind map", err)
	}
	if result.DeletedCount == 0 {
		return notFound("mind map", id)
	}
	return nil
}

// Settings

// GetSettings returns the stored settings of a user
func (s *Store) GetSettings(ctx context.Context, userID string) (*entities.UserSettings, error) {
	var u entities.UserSettings
	err := s.settings.FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound("settings", userID)
	}
	if err != nil {
		return nil, storageErr("get settings", err)
	}
	return &u, nil
}

// SaveSettings inserts or replaces the settings of a user
func (s *Store) SaveSettings(ctx context.Context, u *entities.UserSettings) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	_, err := s.settings.ReplaceOne(ctx, bson.M{"_id": u.UserID}, u, options.Replace().SetUpsert(true))
	if err != nil {
		return storageErr("save settings", err)
	}
	return nil
}

// Admin

func (s *Store) count(ctx context.Context, coll *mongo.Collection, filter bson.M) (int, error) {
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, storageErr("count "+coll.Name(), err)
	}
	return int(n), nil
}

// Stats returns store-wide counters
func (s *Store) Stats(ctx context.Context) (*entities.DatabaseStats, error) {
	var stats entities.DatabaseStats
	counts := []struct {
		dst    *int
		coll   *mongo.Collection
		filter bson.M
	}{
		{&stats.TotalSessions, s.sessions, bson.M{}},
		{&stats.ActiveSessions, s.sessions, bson.M{"is_active": true}},
		{&stats.TotalTranscripts, s.transcripts, bson.M{}},
		{&stats.TotalLLMResults, s.llmResults, bson.M{}},
		{&stats.TotalMindMaps, s.mindMaps, bson.M{}},
		{&stats.UnprocessedTranscripts, s.transcripts, bson.M{"processed_at": nil}},
	}
	for _, c := range counts {
		n, err := s.count(ctx, c.coll, c.filter)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}
	return &stats, nil
}

// SessionSummary returns counters for one session
func (s *Store) SessionSummary(ctx context.Context, sessionID string) (*entities.SessionSummary, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sum := &entities.SessionSummary{
		SessionID:    session.ID,
		Name:         session.Name,
		IsActive:     session.IsActive,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
	}
	bySession := bson.M{"session_id": sessionID}
	if sum.TranscriptCount, err = s.count(ctx, s.transcripts, bySession); err != nil {
		return nil, err
	}
	if sum.LLMResultCount, err = s.count(ctx, s.llmResults, bySession); err != nil {
		return nil, err
	}
	if sum.MindMapCount, err = s.count(ctx, s.mindMaps, bySession); err != nil {
		return nil, err
	}
	sum.EstimatedSeconds = float64(sum.TranscriptCount) * entities.SecondsPerTranscript
	return sum, nil
}

// EraseSessionContent deletes a session's LLM results, transcripts and mind
// maps and bumps its last activity. The deletes are not transactional; a
// failure part way leaves the remaining content in place.
func (s *Store) EraseSessionContent(ctx context.Context, sessionID string) error {
	if err := s.Touch(ctx, sessionID); err != nil {
		return err
	}
	bySession := bson.M{"session_id": sessionID}
	for _, coll := range []*mongo.Collection{s.llmResults, s.transcripts, s.mindMaps} {
		if _, err := coll.DeleteMany(ctx, bySession); err != nil {
			return storageErr("erase "+coll.Name(), err)
		}
	}
	s.logger.Info("Session content erased", zap.String("sessionID", sessionID))
	return nil
}
