package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/platform/metrics"
	"github.com/diagnosis/visitor-desk/internal/platform/sms"
	"github.com/diagnosis/visitor-desk/internal/repo/postgres"
	"github.com/diagnosis/visitor-desk/internal/utils"
	"github.com/diagnosis/visitor-desk/pkg/auth"
	"github.com/diagnosis/visitor-desk/pkg/config"
	"github.com/diagnosis/visitor-desk/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = &domain.AuthError{Reason: "invalid credentials"}

type AuthService interface {
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.Session, error)
	RequestOTP(ctx context.Context, req *domain.OTPRequest) (*domain.OTPRequestResponse, error)
	VerifyOTP(ctx context.Context, req *domain.OTPVerify) (*domain.Session, error)
	CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	// EnsureBootstrapUser creates the first account when the users table is empty.
	EnsureBootstrapUser(ctx context.Context, username, password string) error
}

type authService struct {
	users   postgres.UsersRepo
	otps    postgres.OTPRepo
	sender  sms.Sender
	config  config.AuthConfig
	devMode bool
	metrics *metrics.Metrics
	now     func() time.Time

	staffPhones map[string]struct{}
}

func NewAuthService(
	users postgres.UsersRepo,
	otps postgres.OTPRepo,
	sender sms.Sender,
	cfg config.AuthConfig,
	devMode bool,
	m *metrics.Metrics,
) AuthService {
	staff := make(map[string]struct{}, len(cfg.StaffPhones))
	for _, p := range cfg.StaffPhones {
		if p = utils.NormalizePhone(p); p != "" {
			staff[p] = struct{}{}
		}
	}
	return &authService{
		users:       users,
		otps:        otps,
		sender:      sender,
		config:      cfg,
		devMode:     devMode,
		metrics:     m,
		now:         time.Now,
		staffPhones: staff,
	}
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.Session, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, errInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, errInvalidCredentials
	}

	return s.issue(&domain.Actor{
		UserID:   &user.ID,
		Username: user.Username,
		Method:   domain.AuthMethodPassword,
	})
}

func (s *authService) RequestOTP(ctx context.Context, req *domain.OTPRequest) (*domain.OTPRequestResponse, error) {
	phone := utils.NormalizePhone(req.Phone)
	if !utils.IsValidPhone(phone) {
		return nil, domain.NewValidationError("phone", "a valid phone number is required")
	}
	if !s.isStaffPhone(phone) {
		logger.WarnContext(ctx, "Login code requested for unregistered phone", "phone", utils.MaskPhone(phone))
		return nil, &domain.AuthError{Reason: "phone is not registered for staff access"}
	}

	code, err := generateCode(domain.OTPCodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash code: %w", err)
	}

	if _, err := s.otps.Create(ctx, phone, string(hash), s.now().Add(s.config.OTPTTL)); err != nil {
		return nil, &domain.StorageError{Op: "create otp", Err: err}
	}

	if err := s.sender.SendOTP(ctx, phone, code); err != nil {
		logger.ErrorContext(ctx, "Failed to send login code", "error", err, "phone", utils.MaskPhone(phone))
		if !s.devMode {
			return nil, fmt.Errorf("failed to send login code: %w", err)
		}
	}
	s.metrics.IncrementOTPSent()

	res := &domain.OTPRequestResponse{
		Message:   "login code sent",
		ExpiresIn: int64(s.config.OTPTTL.Seconds()),
	}
	if s.devMode {
		res.DevCode = code
	}
	return res, nil
}

func (s *authService) VerifyOTP(ctx context.Context, req *domain.OTPVerify) (*domain.Session, error) {
	req.Phone = utils.NormalizePhone(req.Phone)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.isStaffPhone(req.Phone) {
		return nil, &domain.AuthError{Reason: "invalid or expired code"}
	}

	challenge, err := s.otps.Latest(ctx, req.Phone)
	if err != nil {
		return nil, &domain.StorageError{Op: "find otp", Err: err}
	}
	if challenge == nil || !challenge.CanAttempt(s.now()) {
		return nil, &domain.AuthError{Reason: "invalid or expired code"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(challenge.CodeHash), []byte(req.Code)); err != nil {
		if incErr := s.otps.IncrementAttempts(ctx, challenge.ID); incErr != nil {
			logger.ErrorContext(ctx, "Failed to record otp attempt", "error", incErr)
		}
		return nil, &domain.AuthError{Reason: "invalid or expired code"}
	}

	consumed, err := s.otps.MarkUsed(ctx, challenge.ID)
	if err != nil {
		return nil, &domain.StorageError{Op: "consume otp", Err: err}
	}
	if !consumed {
		return nil, &domain.AuthError{Reason: "invalid or expired code"}
	}

	return s.issue(&domain.Actor{Phone: req.Phone, Method: domain.AuthMethodOTP})
}

func (s *authService) CreateUser(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Username, hash)
	if errors.Is(err, postgres.ErrDuplicate) {
		return nil, domain.ErrUsernameTaken
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "create user", Err: err}
	}
	return user, nil
}

func (s *authService) EnsureBootstrapUser(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	n, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	user, err := s.CreateUser(ctx, &domain.CreateUserRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Created bootstrap user", "username", user.Username)
	return nil
}

func (s *authService) isStaffPhone(phone string) bool {
	_, ok := s.staffPhones[phone]
	return ok
}

func (s *authService) issue(actor *domain.Actor) (*domain.Session, error) {
	id := auth.Identity{
		Username: actor.Username,
		Phone:    actor.Phone,
		Role:     domain.RoleStaff,
		Method:   actor.Method,
	}
	if actor.UserID != nil {
		id.UserID = *actor.UserID
	}
	token, err := auth.NewAccessToken(id, s.config.JWTSecret, s.config.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	return &domain.Session{
		AccessToken: token,
		ExpiresIn:   int64(s.config.AccessTokenTTL.Seconds()),
		Actor:       actor,
	}, nil
}

func generateCode(digits int) (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < digits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
