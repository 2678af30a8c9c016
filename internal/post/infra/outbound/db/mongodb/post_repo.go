package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	postDomain "github.com/davicafu/postmesh/internal/post/domain"
)

// PostRepoMongoDB implementa la interfaz PostRepository para MongoDB.
type PostRepoMongoDB struct {
	posts *mongo.Collection
}

var _ postDomain.PostRepository = (*PostRepoMongoDB)(nil)

// NewPostRepoMongoDB hace ping y asegura los índices que usan los listados.
func NewPostRepoMongoDB(ctx context.Context, client *mongo.Client, dbName string) (*PostRepoMongoDB, error) {
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}

	coll := client.Database(dbName).Collection("posts")
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "title", Value: "text"}}},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create post indexes: %w", err)
	}
	return &PostRepoMongoDB{posts: coll}, nil
}

// --- Structs de BSON para el mapeo ---
// Se definen localmente para no "contaminar" el dominio con tags de BSON.

type mongoPost struct {
	ID          string    `bson:"_id"`
	User        string    `bson:"user"`
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	MediaIDs    []string  `bson:"mediaIds"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func (r *PostRepoMongoDB) Create(ctx context.Context, p *postDomain.Post) error {
	_, err := r.posts.InsertOne(ctx, toMongoPost(p))
	return err
}

func (r *PostRepoMongoDB) GetByID(ctx context.Context, id uuid.UUID) (*postDomain.Post, error) {
	var mp mongoPost
	err := r.posts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&mp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, postDomain.ErrPostNotFound
		}
		return nil, err
	}
	return fromMongoPost(&mp)
}

func (r *PostRepoMongoDB) List(ctx context.Context, page, limit int) ([]*postDomain.Post, int64, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := r.posts.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	posts := make([]*postDomain.Post, 0, limit)
	for cursor.Next(ctx) {
		var mp mongoPost
		if err := cursor.Decode(&mp); err != nil {
			return nil, 0, err
		}
		p, err := fromMongoPost(&mp)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	total, err := r.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepoMongoDB) Update(ctx context.Context, p *postDomain.Post) error {
	mp := toMongoPost(p)
	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": mp.ID}, bson.M{"$set": bson.M{
		"title":       mp.Title,
		"description": mp.Description,
		"updatedAt":   mp.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return postDomain.ErrPostNotFound
	}
	return nil
}

func (r *PostRepoMongoDB) DeleteOwned(ctx context.Context, id uuid.UUID, userID string) (*postDomain.Post, error) {
	var mp mongoPost
	err := r.posts.FindOneAndDelete(ctx, bson.M{"_id": id.String(), "user": userID}).Decode(&mp)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, postDomain.ErrPostNotFound
		}
		return nil, err
	}
	return fromMongoPost(&mp)
}

// --- Mapeo ---

func toMongoPost(p *postDomain.Post) mongoPost {
	return mongoPost{
		ID:          p.ID.String(),
		User:        p.UserID,
		Title:       p.Title,
		Description: p.Description,
		MediaIDs:    p.MediaIDs,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromMongoPost(mp *mongoPost) (*postDomain.Post, error) {
	id, err := uuid.Parse(mp.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid post id %q: %w", mp.ID, err)
	}
	mediaIDs := mp.MediaIDs
	if mediaIDs == nil {
		mediaIDs = []string{}
	}
	return &postDomain.Post{
		ID:          id,
		UserID:      mp.User,
		Title:       mp.Title,
		Description: mp.Description,
		MediaIDs:    mediaIDs,
		CreatedAt:   mp.CreatedAt.UTC(),
		UpdatedAt:   mp.UpdatedAt.UTC(),
	}, nil
}
