package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

const licensesCollection = "license_keys"

// LicenseRepository implements ports.LicenseRepository. The domain struct
// carries bson tags, so documents round-trip without a mapping type.
type LicenseRepository struct {
	coll *mongo.Collection
}

func NewLicenseRepository(db *mongo.Database) *LicenseRepository {
	return &LicenseRepository{coll: db.Collection(licensesCollection)}
}

func (r *LicenseRepository) FindByKey(ctx context.Context, key string) (*domain.LicenseKey, error) {
	return r.findOne(ctx, bson.M{"key": key})
}

func (r *LicenseRepository) FindByUserID(ctx context.Context, userID string) (*domain.LicenseKey, error) {
	return r.findOne(ctx, bson.M{"user_id": userID})
}

func (r *LicenseRepository) findOne(ctx context.Context, filter bson.M) (*domain.LicenseKey, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var l domain.LicenseKey
	if err := r.coll.FindOne(ctx, filter).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *LicenseRepository) ExistsKey(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"key": key})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *LicenseRepository) Create(ctx context.Context, l *domain.LicenseKey) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.coll.InsertOne(ctx, l)
	return err
}

func (r *LicenseRepository) Update(ctx context.Context, l *domain.LicenseKey) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"key": l.Key}, l)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrLicenseNotFound
	}
	return nil
}

func (r *LicenseRepository) SetEnrolledBy(ctx context.Context, userID, code string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"enrolled_by": code, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrLicenseNotFound
	}
	return nil
}

// EnsureIndexes creates the unique key index and the user lookup index.
func (r *LicenseRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}}, Options: indexUnique()},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
