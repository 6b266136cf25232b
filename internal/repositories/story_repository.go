package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrStoryNotFound = errors.New("story not found")

// StoryRepository defines the interface for story item operations
type StoryRepository interface {
	CreateStoryItem(ctx context.Context, item *models.StoryItem) error
	GetStoryItem(ctx context.Context, id string) (*models.StoryItem, error)
	ListStoriesSince(ctx context.Context, since time.Time) ([]models.StoryItem, error)
	AppendView(ctx context.Context, itemID, viewerID string) error
	AppendReaction(ctx context.Context, itemID string, reaction models.Reaction) error
	UpdateCaption(ctx context.Context, itemID, caption string) error
	DeleteItem(ctx context.Context, itemID string) error
	WatchStories(ctx context.Context, onUpsert func(models.StoryItem), onDelete func(id string)) error
}

type storyRepository struct {
	collection *mongo.Collection
}

func NewStoryRepository(mongoDB *mongo.Database) StoryRepository {
	return &storyRepository{collection: mongoDB.Collection("stories")}
}

func (r *storyRepository) CreateStoryItem(ctx context.Context, item *models.StoryItem) error {
	item.ID = uuid.NewString()
	item.CreatedAt = time.Now().UTC()
	item.ViewerIDs = []string{}
	item.Reactions = []models.Reaction{}
	_, err := r.collection.InsertOne(ctx, item)
	return err
}

func (r *storyRepository) GetStoryItem(ctx context.Context, id string) (*models.StoryItem, error) {
	var item models.StoryItem
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *storyRepository) ListStoriesSince(ctx context.Context, since time.Time) ([]models.StoryItem, error) {
	filter := bson.M{"created_at": bson.M{"$gt": since}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []models.StoryItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AppendView adds viewerID with $addToSet. The author_id guard keeps authors
// out of their own viewer set even if a caller skips the check.
func (r *storyRepository) AppendView(ctx context.Context, itemID, viewerID string) error {
	filter := bson.M{"_id": itemID, "author_id": bson.M{"$ne": viewerID}}
	update := bson.M{"$addToSet": bson.M{"viewer_ids": viewerID}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStoryNotFound
	}
	return nil
}

func (r *storyRepository) AppendReaction(ctx context.Context, itemID string, reaction models.Reaction) error {
	update := bson.M{"$push": bson.M{"reactions": reaction}}
	return r.updateOne(ctx, itemID, update)
}

func (r *storyRepository) UpdateCaption(ctx context.Context, itemID, caption string) error {
	update := bson.M{"$set": bson.M{"caption": caption}}
	return r.updateOne(ctx, itemID, update)
}

func (r *storyRepository) DeleteItem(ctx context.Context, itemID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": itemID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrStoryNotFound
	}
	return nil
}

func (r *storyRepository) updateOne(ctx context.Context, itemID string, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": itemID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrStoryNotFound
	}
	return nil
}

type storyChange struct {
	OperationType string            `bson:"operationType"`
	FullDocument  *models.StoryItem `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// WatchStories tails the collection's change stream until ctx is done.
// Requires a replica set deployment.
func (r *storyRepository) WatchStories(ctx context.Context, onUpsert func(models.StoryItem), onDelete func(id string)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := r.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var change storyChange
		if err := stream.Decode(&change); err != nil {
			return err
		}
		switch change.OperationType {
		case "delete":
			onDelete(change.DocumentKey.ID)
		default:
			if change.FullDocument != nil {
				onUpsert(*change.FullDocument)
			} else {
				// deleted before the update lookup ran
				onDelete(change.DocumentKey.ID)
			}
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return stream.Err()
}
