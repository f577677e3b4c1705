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

const staffKeysCollection = "staff_keys"

// StaffKeyRepository implements ports.StaffKeyRepository. Staff keys are
// created out-of-band by administrators; this repository only reads and
// assigns them.
type StaffKeyRepository struct {
	coll *mongo.Collection
}

func NewStaffKeyRepository(db *mongo.Database) *StaffKeyRepository {
	return &StaffKeyRepository{coll: db.Collection(staffKeysCollection)}
}

type mongoStaffKey struct {
	Code       string `bson:"code"`
	Role       string `bson:"role"`
	Status     string `bson:"status"`
	AssignedTo string `bson:"assigned_to,omitempty"`
	CreatedAt  int64  `bson:"created_at"`
	UpdatedAt  int64  `bson:"updated_at"`
}

func (r *StaffKeyRepository) FindByCode(ctx context.Context, code string) (*domain.StaffKey, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mk mongoStaffKey
	if err := r.coll.FindOne(ctx, bson.M{"code": code}).Decode(&mk); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrStaffKeyNotFound
		}
		return nil, err
	}
	return mk.toDomain(), nil
}

// FindByCodeDirect is the fallback read path: same collection, but with
// primary read preference so a stale or unreachable secondary cannot mask
// an existing key.
func (r *StaffKeyRepository) FindByCodeDirect(ctx context.Context, code string) (*domain.StaffKey, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOne().SetMaxTime(defaultTimeout)
	var mk mongoStaffKey
	if err := r.coll.FindOne(ctx, bson.M{"code": code}, opts).Decode(&mk); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrStaffKeyNotFound
		}
		return nil, err
	}
	return mk.toDomain(), nil
}

// Assign claims the key for a user. The filter only matches an active,
// unassigned key, so a concurrent claim loses cleanly instead of
// reassigning.
func (r *StaffKeyRepository) Assign(ctx context.Context, code, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{
		"code":   code,
		"status": string(domain.StaffKeyActive),
		"$or": bson.A{
			bson.M{"assigned_to": ""},
			bson.M{"assigned_to": bson.M{"$exists": false}},
			bson.M{"assigned_to": userID}, // re-invocation by the same user is a no-op
		},
	}
	update := bson.M{"$set": bson.M{
		"assigned_to": userID,
		"updated_at":  time.Now().UTC().Unix(),
	}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the key does not exist or someone else holds it.
		existing, findErr := r.FindByCode(ctx, code)
		if findErr != nil {
			return findErr
		}
		if existing.Status != domain.StaffKeyActive {
			return domain.ErrStaffKeyInactive
		}
		return domain.ErrStaffKeyAssigned
	}
	return nil
}

// EnsureIndexes creates the unique code index.
func (r *StaffKeyRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: indexUnique(),
	})
	return err
}

func (mk *mongoStaffKey) toDomain() *domain.StaffKey {
	return &domain.StaffKey{
		Code:       mk.Code,
		Role:       mk.Role,
		Status:     domain.StaffKeyStatus(mk.Status),
		AssignedTo: mk.AssignedTo,
		CreatedAt:  unixToTime(mk.CreatedAt),
		UpdatedAt:  unixToTime(mk.UpdatedAt),
	}
}
