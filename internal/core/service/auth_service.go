package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/fxdesk/trader-portal/internal/core/domain"
	"github.com/fxdesk/trader-portal/internal/core/ports"
)

// RepairQueue accepts opportunistic background repair jobs keyed by user id.
type RepairQueue interface {
	Enqueue(userID string)
}

// AuthService implements registration and login. Registration runs the full
// new-user pipeline; both paths enqueue a best-effort drift repair.
type AuthService struct {
	repo       ports.AuthRepository
	validator  ports.KeyValidatorService
	enrollment ports.EnrollmentService
	repairs    RepairQueue
	jwtSecret  string
	tokenTTL   time.Duration
	log        zerolog.Logger
}

func NewAuthService(
	repo ports.AuthRepository,
	validator ports.KeyValidatorService,
	enrollment ports.EnrollmentService,
	repairs RepairQueue,
	jwtSecret string,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		repo:       repo,
		validator:  validator,
		enrollment: enrollment,
		repairs:    repairs,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		log:        log,
	}
}

func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (string, *domain.User, error) {
	if input.Email == "" || input.Password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	role, err := s.resolveRole(ctx, input.EnrollmentCode)
	if err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return "", nil, err
	}

	if _, err := s.enrollment.HandleNewUser(ctx, ports.NewUserInput{
		UserID:         created.ID,
		Email:          created.Email,
		FullName:       created.FullName,
		Role:           created.Role,
		EnrollmentCode: input.EnrollmentCode,
	}); err != nil {
		// The account exists; the queue will converge the records.
		s.log.Error().Err(err).Str("user_id", created.ID).Msg("new user pipeline failed, scheduling repair")
		if s.repairs != nil {
			s.repairs.Enqueue(created.ID)
		}
	}

	token, err := s.generateToken(created)
	if err != nil {
		return "", nil, err
	}
	return token, created, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	if s.repairs != nil {
		s.repairs.Enqueue(user.ID)
	}
	return token, user, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.FindByID(ctx, userID)
}

// resolveRole maps the optional enrollment code to the role it grants.
// Staff keys must be active and unclaimed; referral codes must resolve to
// an existing profile. No code means a plain customer.
func (s *AuthService) resolveRole(ctx context.Context, code string) (string, error) {
	if code == "" {
		return domain.RoleCustomer, nil
	}

	if format := domain.ClassifyStaffKey(code); format != domain.FormatUnrecognized {
		check, err := s.validator.ValidateStaffKey(ctx, code)
		if err != nil {
			return "", err
		}
		if !check.IsValid {
			return "", domain.ErrEnrollmentCodeInvalid
		}
		if check.IsAssigned {
			return "", domain.ErrStaffKeyAssigned
		}
		return format.Role(), nil
	}

	check, err := s.validator.ValidateReferralCode(ctx, code)
	if err != nil {
		return "", err
	}
	if !check.IsValid {
		return "", domain.ErrEnrollmentCodeInvalid
	}
	return domain.RoleCustomer, nil
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  user.Role,
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
