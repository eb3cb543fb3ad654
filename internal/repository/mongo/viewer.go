package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reelengine/internal/domain"
)

const viewerSettingsID = "viewer"

type watchPositionDoc struct {
	ID        string  `bson:"_id"` // item id
	Index     int     `bson:"index"`
	Position  float64 `bson:"position"` // seconds
	Duration  float64 `bson:"duration"` // seconds
	UpdatedAt int64   `bson:"updatedAt"`
}

type viewerSettingsDoc struct {
	ID        string `bson:"_id"`
	Autoplay  bool   `bson:"autoplay"`
	Muted     bool   `bson:"muted"`
	UpdatedAt int64  `bson:"updatedAt"`
}

// ViewerRepository persists watch positions and viewer playback preferences.
// It implements ports.ViewerStore.
type ViewerRepository struct {
	positions *mongo.Collection
	settings  *mongo.Collection
}

func NewViewerRepository(client *mongo.Client, dbName string) *ViewerRepository {
	db := client.Database(dbName)
	return &ViewerRepository{
		positions: db.Collection("watch_positions"),
		settings:  db.Collection("settings"),
	}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	return mongo.Connect(ctx, opts...)
}

func (r *ViewerRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.positions == nil {
		return nil
	}
	_, err := r.positions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updatedAt", Value: -1}},
	})
	return err
}

func (r *ViewerRepository) UpsertPosition(ctx context.Context, wp domain.WatchPosition) error {
	update := bson.M{
		"$set": bson.M{
			"index":     wp.Index,
			"position":  wp.Position.Seconds(),
			"duration":  wp.Duration.Seconds(),
			"updatedAt": wp.UpdatedAt.Unix(),
		},
	}
	_, err := r.positions.UpdateOne(
		ctx,
		bson.M{"_id": string(wp.ItemID)},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *ViewerRepository) GetPosition(ctx context.Context, id domain.ItemID) (domain.WatchPosition, error) {
	var doc watchPositionDoc
	err := r.positions.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.WatchPosition{}, domain.ErrNotFound
		}
		return domain.WatchPosition{}, err
	}
	return positionFromDoc(doc), nil
}

func (r *ViewerRepository) RecentPositions(ctx context.Context, limit int) ([]domain.WatchPosition, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.positions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []watchPositionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.WatchPosition, 0, len(docs))
	for _, doc := range docs {
		out = append(out, positionFromDoc(doc))
	}
	return out, nil
}

func (r *ViewerRepository) GetSettings(ctx context.Context) (domain.ViewerSettings, bool, error) {
	var doc viewerSettingsDoc
	err := r.settings.FindOne(ctx, bson.M{"_id": viewerSettingsID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ViewerSettings{}, false, nil
		}
		return domain.ViewerSettings{}, false, err
	}
	return domain.ViewerSettings{Autoplay: doc.Autoplay, Muted: doc.Muted}, true, nil
}

func (r *ViewerRepository) SetSettings(ctx context.Context, s domain.ViewerSettings) error {
	update := bson.M{
		"$set": bson.M{
			"autoplay":  s.Autoplay,
			"muted":     s.Muted,
			"updatedAt": time.Now().Unix(),
		},
	}
	_, err := r.settings.UpdateOne(
		ctx,
		bson.M{"_id": viewerSettingsID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func positionFromDoc(doc watchPositionDoc) domain.WatchPosition {
	return domain.WatchPosition{
		ItemID:    domain.ItemID(doc.ID),
		Index:     doc.Index,
		Position:  time.Duration(doc.Position * float64(time.Second)),
		Duration:  time.Duration(doc.Duration * float64(time.Second)),
		UpdatedAt: time.Unix(doc.UpdatedAt, 0).UTC(),
	}
}
