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

const profilesCollection = "profiles"

// ProfileRepository implements ports.ProfileRepository over the profiles
// collection, the authoritative store of enrollment facts.
type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profilesCollection)}
}

type mongoProfile struct {
	UserID       string `bson:"user_id"`
	Email        string `bson:"email"`
	FullName     string `bson:"full_name,omitempty"`
	Role         string `bson:"role"`
	StaffKey     string `bson:"staff_key,omitempty"`
	ReferredBy   string `bson:"referred_by,omitempty"`
	ReferralCode string `bson:"referral_code,omitempty"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"user_id": userID}, domain.ErrProfileNotFound)
}

func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"email": email}, domain.ErrProfileNotFound)
}

func (r *ProfileRepository) FindByReferralCode(ctx context.Context, code string) (*domain.Profile, error) {
	return r.findOne(ctx, bson.M{"referral_code": code}, domain.ErrReferralCodeNotFound)
}

func (r *ProfileRepository) findOne(ctx context.Context, filter bson.M, notFound error) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mp mongoProfile
	if err := r.coll.FindOne(ctx, filter).Decode(&mp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound
		}
		return nil, err
	}
	return mp.toDomain(), nil
}

func (r *ProfileRepository) ListMissingReferralCodes(ctx context.Context) ([]*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"referral_code": ""},
		bson.M{"referral_code": bson.M{"$exists": false}},
	}}

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var profiles []*domain.Profile
	for cursor.Next(ctx) {
		var mp mongoProfile
		if err := cursor.Decode(&mp); err != nil {
			return nil, err
		}
		profiles = append(profiles, mp.toDomain())
	}
	return profiles, cursor.Err()
}

// Upsert writes the full profile document keyed by user id.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoProfile{
		UserID:       p.UserID,
		Email:        p.Email,
		FullName:     p.FullName,
		Role:         p.Role,
		StaffKey:     p.StaffKey,
		ReferredBy:   p.ReferredBy,
		ReferralCode: p.ReferralCode,
		CreatedAt:    p.CreatedAt.Unix(),
		UpdatedAt:    p.UpdatedAt.Unix(),
	}

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": p.UserID},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true),
	)
	return err
}

// SetEnrollment writes the code into the field matching its namespace:
// staff-formatted codes land in staff_key, referral codes in referred_by.
// The opposite field is cleared in the same write so the record never ends
// up carrying both.
func (r *ProfileRepository) SetEnrollment(ctx context.Context, userID, code string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	field, opposite := "referred_by", "staff_key"
	if domain.ClassifyStaffKey(code) != domain.FormatUnrecognized {
		field, opposite = "staff_key", "referred_by"
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{field: code, opposite: "", "updated_at": time.Now().UTC().Unix()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// EnsureIndexes creates the unique lookup indexes for profiles.
func (r *ProfileRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: indexUnique()},
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "referral_code", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}

func (mp *mongoProfile) toDomain() *domain.Profile {
	return &domain.Profile{
		UserID:       mp.UserID,
		Email:        mp.Email,
		FullName:     mp.FullName,
		Role:         mp.Role,
		StaffKey:     mp.StaffKey,
		ReferredBy:   mp.ReferredBy,
		ReferralCode: mp.ReferralCode,
		CreatedAt:    unixToTime(mp.CreatedAt),
		UpdatedAt:    unixToTime(mp.UpdatedAt),
	}
}
