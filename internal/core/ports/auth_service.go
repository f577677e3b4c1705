package ports

import (
	"context"

	"github.com/fxdesk/trader-portal/internal/core/domain"
)

// RegisterInput carries all data needed to create a new user.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	// EnrollmentCode is optional: a staff key grants the matching staff
	// role, a referral code enrolls the new customer under its owner.
	EnrollmentCode string
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	CurrentUser(ctx context.Context, userID string) (*domain.User, error)
}
