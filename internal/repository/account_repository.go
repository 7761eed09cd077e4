package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"balance_service/internal/config"
	"balance_service/internal/crypto"
	"balance_service/internal/entity"
)

// AccountSource supplies the normalized account snapshots an aggregation
// request works on and answers a liveness probe for the health endpoint.
type AccountSource interface {
	ActiveAccounts(ctx context.Context) ([]entity.Account, error)
	Ping(ctx context.Context) error
}

// accountDocument mirrors the credential-store record shape. apiKey and
// apiSecret may be cipher-encoded as "iv_hex:payload_hex".
type accountDocument struct {
	Name        string `bson:"name"`
	Exchange    string `bson:"exchange"`
	AccountName string `bson:"accountName"`
	APIKey      string `bson:"apiKey"`
	APISecret   string `bson:"apiSecret"`
}

// MongoAccountRepository reads active exchange accounts from a MongoDB
// collection and decrypts their credentials on the way out.
type MongoAccountRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	cipher     *crypto.Cipher
	logger     *zap.Logger
}

// NewMongoAccountRepository wires the repository onto an established client.
func NewMongoAccountRepository(client *mongo.Client, cfg config.MongoConfig, cipher *crypto.Cipher, logger *zap.Logger) *MongoAccountRepository {
	return &MongoAccountRepository{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		cipher:     cipher,
		logger:     logger.Named("AccountRepository"),
	}
}

// ActiveAccounts returns all active accounts as normalized values. The
// account identifier is derived from the raw document fields; credential
// fields that fail decryption are left encoded and logged, never fatal.
func (r *MongoAccountRepository) ActiveAccounts(ctx context.Context) ([]entity.Account, error) {
	projection := bson.M{
		"name":        1,
		"exchange":    1,
		"accountName": 1,
		"apiKey":      1,
		"apiSecret":   1,
		"_id":         0,
	}
	cursor, err := r.collection.Find(ctx, bson.M{"isActive": true}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, fmt.Errorf("failed to query active accounts: %w", err)
	}

	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode account documents: %w", err)
	}

	accounts := make([]entity.Account, 0, len(docs))
	for _, doc := range docs {
		accounts = append(accounts, entity.Account{
			AccountID:   entity.DeriveAccountID(doc.Name, doc.Exchange, doc.AccountName),
			AccountName: doc.AccountName,
			Exchange:    entity.CanonicalExchangeName(doc.Exchange),
			APIKey:      r.cipher.DecryptField(doc.APIKey),
			APISecret:   r.cipher.DecryptField(doc.APISecret),
		})
	}

	r.logger.Debug("Loaded active accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}

// Ping probes the credential store for the health endpoint.
func (r *MongoAccountRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}
