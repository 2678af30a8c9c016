package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	mediaDomain "github.com/davicafu/postmesh/internal/media/domain"
)

// MediaRepoMongoDB implementa MediaRepository para MongoDB.
type MediaRepoMongoDB struct {
	medias *mongo.Collection
}

var _ mediaDomain.MediaRepository = (*MediaRepoMongoDB)(nil)

func NewMediaRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*MediaRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	coll := client.Database(dbName).Collection("medias")
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create media indexes: %w", err)
	}
	return &MediaRepoMongoDB{medias: coll}, nil
}

type mongoMedia struct {
	ID           string    `bson:"_id"`
	UserID       string    `bson:"userId"`
	OriginalName string    `bson:"originalName"`
	MimeType     string    `bson:"mimeType"`
	Size         int64     `bson:"size"`
	PublicID     string    `bson:"publicId"`
	URL          string    `bson:"url"`
	CreatedAt    time.Time `bson:"createdAt"`
}

func (r *MediaRepoMongoDB) Create(ctx context.Context, m *mediaDomain.Media) error {
	_, err := r.medias.InsertOne(ctx, toMongoMedia(m))
	return err
}

func (r *MediaRepoMongoDB) ListByUser(ctx context.Context, userID string) ([]*mediaDomain.Media, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"userId": userID}, opts)
}

func (r *MediaRepoMongoDB) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*mediaDomain.Media, error) {
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": raw}})
}

func (r *MediaRepoMongoDB) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.medias.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mediaDomain.ErrMediaNotFound
	}
	return nil
}

func (r *MediaRepoMongoDB) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]*mediaDomain.Media, error) {
	cursor, err := r.medias.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoMedia
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*mediaDomain.Media, 0, len(docs))
	for i := range docs {
		m, err := fromMongoMedia(&docs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// --- Mapeo ---

func toMongoMedia(m *mediaDomain.Media) mongoMedia {
	return mongoMedia{
		ID:           m.ID.String(),
		UserID:       m.UserID,
		OriginalName: m.OriginalName,
		MimeType:     m.MimeType,
		Size:         m.Size,
		PublicID:     m.StorageKey,
		URL:          m.URL,
		CreatedAt:    m.CreatedAt,
	}
}

func fromMongoMedia(mm *mongoMedia) (*mediaDomain.Media, error) {
	id, err := uuid.Parse(mm.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid media id %q: %w", mm.ID, err)
	}
	return &mediaDomain.Media{
		ID:           id,
		UserID:       mm.UserID,
		OriginalName: mm.OriginalName,
		MimeType:     mm.MimeType,
		Size:         mm.Size,
		StorageKey:   mm.PublicID,
		URL:          mm.URL,
		CreatedAt:    mm.CreatedAt.UTC(),
	}, nil
}
