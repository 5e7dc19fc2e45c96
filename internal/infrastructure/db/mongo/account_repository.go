package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/policynav/accounts/internal/core/domain"
)

const usersCollection = "users"

// AccountRepository stores accounts in MongoDB, one document per email.
type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index that enforces one account per email.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("create email index: %w", storageErr(err))
	}
	return nil
}

type mongoAccount struct {
	ID               string `bson:"_id"`
	Username         string `bson:"username"`
	Email            string `bson:"email"`
	PasswordHash     string `bson:"password_hash"`
	SecurityQuestion string `bson:"security_question"`
	SecurityAnswer   string `bson:"security_answer"`
	IsAdmin          bool   `bson:"is_admin"`
	OTPAttempts      int    `bson:"otp_attempts"`
	CreatedAt        int64  `bson:"created_at"`
	UpdatedAt        int64  `bson:"updated_at"`
}

func (r *AccountRepository) Create(ctx context.Context, acc *domain.Account) error {
	doc := mongoAccount{
		ID:               acc.ID,
		Username:         acc.Username,
		Email:            acc.Email,
		PasswordHash:     acc.PasswordHash,
		SecurityQuestion: acc.SecurityQuestion,
		SecurityAnswer:   acc.SecurityAnswer,
		IsAdmin:          acc.IsAdmin,
		OTPAttempts:      acc.OTPAttempts,
		CreatedAt:        acc.CreatedAt.Unix(),
		UpdatedAt:        acc.UpdatedAt.Unix(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAccountExists
		}
		return fmt.Errorf("insert account: %w", storageErr(err))
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var doc mongoAccount
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", storageErr(err))
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, email, hash string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"password_hash": hash, "updated_at": at.Unix()}},
	)
	if err != nil {
		return fmt.Errorf("update password: %w", storageErr(err))
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// IncrementOTPAttempts uses $inc so concurrent failures are all counted.
func (r *AccountRepository) IncrementOTPAttempts(ctx context.Context, email string) (int, error) {
	var doc mongoAccount
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"email": email},
		bson.M{"$inc": bson.M{"otp_attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, fmt.Errorf("increment otp attempts: %w", storageErr(err))
	}
	return doc.OTPAttempts, nil
}

func (r *AccountRepository) ResetOTPAttempts(ctx context.Context, email string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"otp_attempts": 0}},
	)
	if err != nil {
		return fmt.Errorf("reset otp attempts: %w", storageErr(err))
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", storageErr(err))
	}
	defer cur.Close(ctx)

	var docs []mongoAccount
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", storageErr(err))
	}

	out := make([]*domain.Account, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

func (d mongoAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:               d.ID,
		Username:         d.Username,
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		SecurityQuestion: d.SecurityQuestion,
		SecurityAnswer:   d.SecurityAnswer,
		IsAdmin:          d.IsAdmin,
		OTPAttempts:      d.OTPAttempts,
		CreatedAt:        unixToTime(d.CreatedAt),
		UpdatedAt:        unixToTime(d.UpdatedAt),
	}
}

// storageErr tags driver failures so callers can match domain.ErrStorageUnavailable.
func storageErr(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
