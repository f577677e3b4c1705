package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

const (
	customersCollection        = "customers"
	customerAccountsCollection = "customer_accounts"
)

// CustomerRepository implements ports.CustomerRepository over both
// projection collections.
type CustomerRepository struct {
	customers *mongo.Collection
	accounts  *mongo.Collection
}

func NewCustomerRepository(db *mongo.Database) *CustomerRepository {
	return &CustomerRepository{
		customers: db.Collection(customersCollection),
		accounts:  db.Collection(customerAccountsCollection),
	}
}

type mongoCustomer struct {
	UserID     string `bson:"user_id"`
	Email      string `bson:"email"`
	FullName   string `bson:"full_name,omitempty"`
	EnrolledBy string `bson:"enrolled_by,omitempty"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
}

type mongoCustomerAccount struct {
	UserID        string `bson:"user_id"`
	Email         string `bson:"email"`
	FullName      string `bson:"full_name,omitempty"`
	EnrollingCode string `bson:"enrolling_code,omitempty"`
	CreatedAt     int64  `bson:"created_at"`
	UpdatedAt     int64  `bson:"updated_at"`
}

func (r *CustomerRepository) FindCustomer(ctx context.Context, userID string) (*domain.Customer, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mc mongoCustomer
	if err := r.customers.FindOne(ctx, bson.M{"user_id": userID}).Decode(&mc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return &domain.Customer{
		UserID:     mc.UserID,
		Email:      mc.Email,
		FullName:   mc.FullName,
		EnrolledBy: mc.EnrolledBy,
		CreatedAt:  unixToTime(mc.CreatedAt),
		UpdatedAt:  unixToTime(mc.UpdatedAt),
	}, nil
}

func (r *CustomerRepository) FindCustomerAccount(ctx context.Context, userID string) (*domain.CustomerAccount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var ma mongoCustomerAccount
	if err := r.accounts.FindOne(ctx, bson.M{"user_id": userID}).Decode(&ma); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, err
	}
	return &domain.CustomerAccount{
		UserID:        ma.UserID,
		Email:         ma.Email,
		FullName:      ma.FullName,
		EnrollingCode: ma.EnrollingCode,
		CreatedAt:     unixToTime(ma.CreatedAt),
		UpdatedAt:     unixToTime(ma.UpdatedAt),
	}, nil
}

func (r *CustomerRepository) UpsertCustomer(ctx context.Context, c *domain.Customer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoCustomer{
		UserID:     c.UserID,
		Email:      c.Email,
		FullName:   c.FullName,
		EnrolledBy: c.EnrolledBy,
		CreatedAt:  c.CreatedAt.Unix(),
		UpdatedAt:  c.UpdatedAt.Unix(),
	}
	_, err := r.customers.UpdateOne(ctx,
		bson.M{"user_id": c.UserID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *CustomerRepository) UpsertCustomerAccount(ctx context.Context, c *domain.CustomerAccount) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoCustomerAccount{
		UserID:        c.UserID,
		Email:         c.Email,
		FullName:      c.FullName,
		EnrollingCode: c.EnrollingCode,
		CreatedAt:     c.CreatedAt.Unix(),
		UpdatedAt:     c.UpdatedAt.Unix(),
	}
	_, err := r.accounts.UpdateOne(ctx,
		bson.M{"user_id": c.UserID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *CustomerRepository) SetCustomerEnrolledBy(ctx context.Context, userID, code string) error {
	return r.setField(ctx, r.customers, userID, "enrolled_by", code)
}

func (r *CustomerRepository) SetCustomerAccountEnrollingCode(ctx context.Context, userID, code string) error {
	return r.setField(ctx, r.accounts, userID, "enrolling_code", code)
}

func (r *CustomerRepository) setField(ctx context.Context, coll *mongo.Collection, userID, field, value string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{field: value, "updated_at": time.Now().UTC().Unix()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// EnsureIndexes creates the user id indexes on both projections.
func (r *CustomerRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	model := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: indexUnique()}
	if _, err := r.customers.Indexes().CreateOne(ctx, model); err != nil {
		return err
	}
	_, err := r.accounts.Indexes().CreateOne(ctx, model)
	return err
}
