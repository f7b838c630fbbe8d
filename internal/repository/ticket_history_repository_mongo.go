package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

const statusHistoryCollection = "support_ticket_status_history"

type statusChangeDocument struct {
	ID        string    `bson:"_id"`
	TicketID  string    `bson:"ticket_id"`
	Revision  int64     `bson:"revision"`
	From      string    `bson:"from_status"`
	To        string    `bson:"to_status"`
	Reason    string    `bson:"reason"`
	ActorID   string    `bson:"actor_id"`
	ActorRole string    `bson:"actor_role"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoStatusHistoryRepository struct {
	entries *mongo.Collection
}

// NewMongoStatusHistoryRepository builds a document-store audit log.
func NewMongoStatusHistoryRepository(db *mongo.Database) StatusHistoryRepository {
	return &mongoStatusHistoryRepository{entries: db.Collection(statusHistoryCollection)}
}

func (r *mongoStatusHistoryRepository) Create(ctx context.Context, entry *domain.StatusChange) error {
	_, err := r.entries.InsertOne(ctx, statusChangeDocument{
		ID:        entry.ID,
		TicketID:  entry.TicketID,
		Revision:  entry.Revision,
		From:      string(entry.From),
		To:        string(entry.To),
		Reason:    string(entry.Reason),
		ActorID:   entry.ActorID,
		ActorRole: string(entry.ActorRole),
		CreatedAt: entry.CreatedAt,
	})
	return err
}

func (r *mongoStatusHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StatusChange, error) {
	opts := options.Find().SetSort(bson.D{{Key: "revision", Value: 1}})
	cursor, err := r.entries.Find(ctx, bson.M{"ticket_id": ticketID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []statusChangeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.StatusChange, 0, len(docs))
	for _, d := range docs {
		result = append(result, domain.StatusChange{
			ID:        d.ID,
			TicketID:  d.TicketID,
			Revision:  d.Revision,
			From:      domain.TicketStatus(d.From),
			To:        domain.TicketStatus(d.To),
			Reason:    domain.StatusChangeReason(d.Reason),
			ActorID:   d.ActorID,
			ActorRole: domain.Role(d.ActorRole),
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	return result, nil
}
