// Package mongo stores transactions in a MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultCollection holds the transaction documents.
const DefaultCollection = "transactions"

// transactionDocument is one record. The key joins user and record id so
// two users importing the same bank line never collide.
type transactionDocument struct {
	Key              string   `bson:"_id"`
	ID               string   `bson:"id"`
	UserID           string   `bson:"userId"`
	Amount           float64  `bson:"amount"`
	OriginalAmount   *float64 `bson:"originalAmount,omitempty"`
	OriginalCurrency string   `bson:"originalCurrency,omitempty"`
	Category         string   `bson:"category"`
	Description      string   `bson:"description"`
	Date             string   `bson:"date"`
	Type             string   `bson:"type"`
	CreatedAt        int64    `bson:"createdAt"`
}

func documentKey(user, id string) string {
	return user + ":" + id
}

func documentFromTransaction(user string, tx domain.Transaction, now time.Time) transactionDocument {
	doc := transactionDocument{
		Key:         documentKey(user, tx.ID),
		ID:          tx.ID,
		UserID:      user,
		Amount:      tx.Amount,
		Category:    tx.Category,
		Description: tx.Description,
		Date:        tx.Date,
		Type:        string(tx.Type),
		CreatedAt:   now.Unix(),
	}
	if tx.OriginalAmount != nil && tx.OriginalCurrency != "" {
		doc.OriginalAmount = domain.Float(*tx.OriginalAmount)
		doc.OriginalCurrency = string(tx.OriginalCurrency)
	}
	return doc
}

func (d transactionDocument) toTransaction() domain.Transaction {
	tx := domain.Transaction{
		ID:          d.ID,
		Amount:      d.Amount,
		Category:    d.Category,
		Description: d.Description,
		Date:        d.Date,
		Type:        domain.TransactionType(d.Type),
	}
	if d.OriginalAmount != nil && d.OriginalCurrency != "" {
		tx.OriginalAmount = domain.Float(*d.OriginalAmount)
		tx.OriginalCurrency = domain.Currency(d.OriginalCurrency)
	}
	return domain.Normalize(tx)
}

// TransactionRepository implements store.Remote.
type TransactionRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	now        func() time.Time
}

// Connect opens a client, pings it and ensures the user index exists.
func Connect(ctx context.Context, uri, dbName string) (*TransactionRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("Connect: ping: %w", err)
	}

	repo := NewTransactionRepository(client.Database(dbName).Collection(DefaultCollection))
	repo.client = client
	if err := repo.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

// NewTransactionRepository wraps a collection.
func NewTransactionRepository(collection *mongo.Collection) *TransactionRepository {
	return &TransactionRepository{collection: collection, now: time.Now}
}

// EnsureIndexes creates the per-user listing index.
func (r *TransactionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("EnsureIndexes: %w", err)
	}
	return nil
}

// Close disconnects a client opened by Connect.
func (r *TransactionRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

// Name implements store.Remote.
func (r *TransactionRepository) Name() string {
	return "mongo"
}

// List implements store.Remote.
func (r *TransactionRepository) List(ctx context.Context, user string) ([]domain.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": user}, opts)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("List: decode: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(docs))
	for _, d := range docs {
		txs = append(txs, d.toTransaction())
	}
	return txs, nil
}

// Insert implements store.Remote.
func (r *TransactionRepository) Insert(ctx context.Context, user string, txs ...domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	now := r.now()
	docs := make([]interface{}, 0, len(txs))
	for _, tx := range txs {
		docs = append(docs, documentFromTransaction(user, tx, now))
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// Update implements store.Remote.
func (r *TransactionRepository) Update(ctx context.Context, user string, tx domain.Transaction) error {
	doc := documentFromTransaction(user, tx, r.now())
	set := bson.M{
		"amount":      doc.Amount,
		"category":    doc.Category,
		"description": doc.Description,
		"date":        doc.Date,
		"type":        doc.Type,
	}
	update := bson.M{"$set": set}
	if doc.OriginalAmount != nil {
		set["originalAmount"] = *doc.OriginalAmount
		set["originalCurrency"] = doc.OriginalCurrency
	} else {
		update["$unset"] = bson.M{"originalAmount": "", "originalCurrency": ""}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": doc.Key}, update)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("Update: %s: %w", tx.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete implements store.Remote.
func (r *TransactionRepository) Delete(ctx context.Context, user, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": documentKey(user, id)}); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}
