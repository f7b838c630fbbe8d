package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/support-ticket-service/internal/domain"
)

const ticketsCollection = "support_tickets"

type ticketDocument struct {
	ID        string            `bson:"_id"`
	OwnerID   string            `bson:"owner_id"`
	Subject   string            `bson:"subject"`
	Priority  string            `bson:"priority"`
	Status    string            `bson:"status"`
	Version   int64             `bson:"version"`
	CreatedAt time.Time         `bson:"created_at"`
	UpdatedAt time.Time         `bson:"updated_at"`
	Messages  []messageDocument `bson:"messages"`
}

type messageDocument struct {
	Sequence int       `bson:"sequence"`
	Sender   string    `bson:"sender"`
	Text     string    `bson:"text"`
	Time     time.Time `bson:"time"`
}

// mongoTicketRepository stores each ticket as one document with its thread embedded. Writes are
// compare-and-swap on the document version; a lost race surfaces ErrConcurrencyConflict.
type mongoTicketRepository struct {
	tickets *mongo.Collection
}

// NewMongoTicketRepository builds a document-store repository.
func NewMongoTicketRepository(db *mongo.Database) TicketRepository {
	return &mongoTicketRepository{tickets: db.Collection(ticketsCollection)}
}

// EnsureMongoIndexes creates the listing indexes used by ListByOwner and ListAll.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(ticketsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(statusHistoryCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "ticket_id", Value: 1}, {Key: "revision", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *mongoTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, error) {
	if err := domain.CheckTicket(ticket); err != nil {
		return nil, err
	}
	created := ticket.Clone()
	created.Version = 1
	if _, err := r.tickets.InsertOne(ctx, toTicketDocument(created)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("ticket %s: %w", ticket.ID, ErrConflict)
		}
		return nil, err
	}
	return created, nil
}

func (r *mongoTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	doc, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *mongoTicketRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	return r.list(ctx, bson.M{"owner_id": ownerID})
}

func (r *mongoTicketRepository) ListAll(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query := bson.M{}
	if filter.Status != nil {
		query["status"] = string(*filter.Status)
	}
	return r.list(ctx, query)
}

func (r *mongoTicketRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	doc, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	current := doc.toDomain()
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if err := domain.CheckMutation(current, working); err != nil {
		return nil, err
	}
	working.Version = doc.Version + 1

	appended := make([]messageDocument, 0, len(working.Messages)-len(current.Messages))
	for _, msg := range working.Messages[len(current.Messages):] {
		appended = append(appended, toMessageDocument(msg))
	}
	update := bson.M{
		"$set": bson.M{
			"status":     string(working.Status),
			"updated_at": working.UpdatedAt,
			"version":    working.Version,
		},
	}
	if len(appended) > 0 {
		update["$push"] = bson.M{"messages": bson.M{"$each": appended}}
	}

	res, err := r.tickets.UpdateOne(ctx, bson.M{"_id": id, "version": doc.Version}, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("ticket %s version %d: %w", id, doc.Version, ErrConcurrencyConflict)
	}
	return working, nil
}

func (r *mongoTicketRepository) find(ctx context.Context, id string) (*ticketDocument, error) {
	var doc ticketDocument
	if err := r.tickets.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *mongoTicketRepository) list(ctx context.Context, query bson.M) ([]domain.Ticket, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.tickets.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []ticketDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	result := make([]domain.Ticket, 0, len(docs))
	for i := range docs {
		result = append(result, *docs[i].toDomain())
	}
	return result, nil
}

func toTicketDocument(t *domain.Ticket) ticketDocument {
	msgs := make([]messageDocument, 0, len(t.Messages))
	for _, msg := range t.Messages {
		msgs = append(msgs, toMessageDocument(msg))
	}
	return ticketDocument{
		ID:        t.ID,
		OwnerID:   t.OwnerID,
		Subject:   t.Subject,
		Priority:  string(t.Priority),
		Status:    string(t.Status),
		Version:   t.Version,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Messages:  msgs,
	}
}

func toMessageDocument(msg domain.Message) messageDocument {
	return messageDocument{
		Sequence: msg.Sequence,
		Sender:   string(msg.Sender),
		Text:     msg.Text,
		Time:     msg.Time,
	}
}

func (d *ticketDocument) toDomain() *domain.Ticket {
	msgs := make([]domain.Message, 0, len(d.Messages))
	for _, m := range d.Messages {
		msgs = append(msgs, domain.Message{
			Sequence: m.Sequence,
			Sender:   domain.MessageSender(m.Sender),
			Text:     m.Text,
			Time:     m.Time.UTC(),
		})
	}
	return &domain.Ticket{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		Subject:   d.Subject,
		Priority:  domain.TicketPriority(d.Priority),
		Status:    domain.TicketStatus(d.Status),
		Version:   d.Version,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
		Messages:  msgs,
	}
}
