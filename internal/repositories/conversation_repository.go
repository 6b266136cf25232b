package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/nano-midea/moments/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository defines the interface for two-party conversations
type ConversationRepository interface {
	AppendMessage(ctx context.Context, pairKey string, participants []string, msg models.Message) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string, limit int64) ([]models.Conversation, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
}

type conversationRepository struct {
	collection *mongo.Collection
}

func NewConversationRepository(mongoDB *mongo.Database) ConversationRepository {
	return &conversationRepository{collection: mongoDB.Collection("conversations")}
}

// AppendMessage upserts the conversation keyed by pairKey and pushes msg onto
// it. The pair key is the document id, so two concurrent first messages still
// land in one conversation.
func (r *conversationRepository) AppendMessage(ctx context.Context, pairKey string, participants []string, msg models.Message) (*models.Conversation, error) {
	update := bson.M{
		"$setOnInsert": bson.M{
			"participants": participants,
			"created_at":   msg.SentAt,
		},
		"$push": bson.M{"messages": msg},
		"$set": bson.M{
			"last_sender_id":  msg.SenderID,
			"last_message_at": msg.SentAt,
			"read_by":         []string{msg.SenderID},
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var conv models.Conversation
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": pairKey}, update, opts).Decode(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string, limit int64) ([]models.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}}).
		SetProjection(bson.M{"messages": bson.M{"$slice": -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []models.Conversation
	if err = cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// CountUnread counts conversations whose latest message userID neither sent nor read.
func (r *conversationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	filter := bson.M{
		"participants":   userID,
		"last_sender_id": bson.M{"$ne": userID},
		"read_by":        bson.M{"$ne": userID},
	}
	return r.collection.CountDocuments(ctx, filter)
}

func (r *conversationRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	filter := bson.M{"_id": conversationID, "participants": userID}
	update := bson.M{"$addToSet": bson.M{"read_by": userID}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}
