package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	searchDomain "github.com/davicafu/postmesh/internal/search/domain"
)

// SearchRepoMongoDB guarda la proyección con un índice de texto sobre título y descripción.
type SearchRepoMongoDB struct {
	searches   *mongo.Collection
	tombstones *mongo.Collection
}

var _ searchDomain.SearchRepository = (*SearchRepoMongoDB)(nil)

func NewSearchRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*SearchRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	db := client.Database(dbName)
	r := &SearchRepoMongoDB{
		searches:   db.Collection("searches"),
		tombstones: db.Collection("search_tombstones"),
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SearchRepoMongoDB) ensureIndexes(ctx context.Context) error {
	_, err := r.searches.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// La unicidad de postId es la que hace idempotente el post.created.
		{Keys: bson.D{{Key: "postId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "title", Value: "text"}, {Key: "description", Value: "text"}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("could not create search indexes: %w", err)
	}

	_, err = r.tombstones.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("could not create tombstone index: %w", err)
	}
	return nil
}

// --- Structs de BSON para el mapeo ---

type mongoSearch struct {
	PostID      string    `bson:"postId"`
	UserID      string    `bson:"userId"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
	Score       float64   `bson:"score,omitempty"`
}

type mongoTombstone struct {
	PostID    string    `bson:"_id"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func (r *SearchRepoMongoDB) Insert(ctx context.Context, p *searchDomain.SearchPost) error {
	_, err := r.searches.InsertOne(ctx, toMongoSearch(p))
	if mongo.IsDuplicateKeyError(err) {
		return searchDomain.ErrSearchRecordExists
	}
	return err
}

func (r *SearchRepoMongoDB) Upsert(ctx context.Context, p *searchDomain.SearchPost) error {
	_, err := r.searches.UpdateOne(ctx,
		bson.M{"postId": p.PostID},
		bson.M{
			"$set": bson.M{
				"userId":      p.UserID,
				"title":       p.Title,
				"description": p.Description,
				"updatedAt":   p.UpdatedAt,
			},
			"$setOnInsert": bson.M{"createdAt": p.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *SearchRepoMongoDB) DeleteByPostID(ctx context.Context, postID string) error {
	_, err := r.searches.DeleteOne(ctx, bson.M{"postId": postID})
	return err
}

func (r *SearchRepoMongoDB) Search(ctx context.Context, query string, limit int) ([]*searchDomain.SearchPost, error) {
	score := bson.M{"$meta": "textScore"}
	opts := options.Find().
		SetProjection(bson.M{"score": score}).
		SetSort(bson.D{{Key: "score", Value: score}}).
		SetLimit(int64(limit))

	cursor, err := r.searches.Find(ctx, bson.M{"$text": bson.M{"$search": query}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []mongoSearch
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]*searchDomain.SearchPost, 0, len(docs))
	for i := range docs {
		out = append(out, fromMongoSearch(&docs[i]))
	}
	return out, nil
}

func (r *SearchRepoMongoDB) WriteTombstone(ctx context.Context, postID string, expiresAt time.Time) error {
	_, err := r.tombstones.ReplaceOne(ctx,
		bson.M{"_id": postID},
		mongoTombstone{PostID: postID, ExpiresAt: expiresAt},
		options.Replace().SetUpsert(true),
	)
	return err
}

// IsTombstoned compara con now: el barrido TTL de Mongo no es inmediato.
func (r *SearchRepoMongoDB) IsTombstoned(ctx context.Context, postID string, now time.Time) (bool, error) {
	var t mongoTombstone
	err := r.tombstones.FindOne(ctx, bson.M{"_id": postID, "expiresAt": bson.M{"$gt": now}}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// --- Mapeo ---

func toMongoSearch(p *searchDomain.SearchPost) mongoSearch {
	return mongoSearch{
		PostID:      p.PostID,
		UserID:      p.UserID,
		Title:       p.Title,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromMongoSearch(m *mongoSearch) *searchDomain.SearchPost {
	return &searchDomain.SearchPost{
		PostID:      m.PostID,
		UserID:      m.UserID,
		Title:       m.Title,
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}
