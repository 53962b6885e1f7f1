package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/pkg/auth"
	"github.com/diagnosis/visitor-desk/pkg/config"
)

const testSecret = "test-secret"

type authFixture struct {
	svc    *authService
	users  *fakeUsersRepo
	otps   *fakeOTPRepo
	sender *fakeSender
}

func newAuthFixture(devMode bool) *authFixture {
	f := &authFixture{
		users:  newFakeUsersRepo(),
		otps:   &fakeOTPRepo{},
		sender: &fakeSender{},
	}
	cfg := config.AuthConfig{
		JWTSecret:      testSecret,
		AccessTokenTTL: time.Hour,
		OTPTTL:         5 * time.Minute,
		StaffPhones:    []string{"+1 555 000 1234", "555-000-1234"},
	}
	f.svc = NewAuthService(f.users, f.otps, f.sender, cfg, devMode, nil).(*authService)
	return f
}

func isAuthError(err error) bool {
	var aErr *domain.AuthError
	return errors.As(err, &aErr)
}

func TestCreateUserAndLogin(t *testing.T) {
	f := newAuthFixture(false)
	ctx := context.Background()

	u, err := f.svc.CreateUser(ctx, &domain.CreateUserRequest{Username: " FrontDesk ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "frontdesk", u.Username)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	_, err = f.svc.CreateUser(ctx, &domain.CreateUserRequest{Username: "frontdesk", Password: "another one"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	sess, err := f.svc.Login(ctx, &domain.LoginRequest{Username: "FRONTDESK", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), sess.ExpiresIn)

	claims, err := auth.Parse(sess.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Sub)
	assert.Equal(t, domain.AuthMethodPassword, claims.Method)

	_, err = f.svc.Login(ctx, &domain.LoginRequest{Username: "frontdesk", Password: "wrong"})
	assert.True(t, isAuthError(err))

	_, err = f.svc.Login(ctx, &domain.LoginRequest{Username: "ghost", Password: "whatever"})
	assert.True(t, isAuthError(err))
}

func TestCreateUser_Validation(t *testing.T) {
	f := newAuthFixture(false)
	for _, req := range []domain.CreateUserRequest{
		{Username: "ab", Password: "longenough"},
		{Username: "has space", Password: "longenough"},
		{Username: "valid", Password: "short"},
	} {
		_, err := f.svc.CreateUser(context.Background(), &req)
		var vErr *domain.ValidationError
		assert.True(t, errors.As(err, &vErr), "%+v", req)
	}
}

func TestOTP_RequestAndVerify(t *testing.T) {
	f := newAuthFixture(false)
	ctx := context.Background()

	res, err := f.svc.RequestOTP(ctx, &domain.OTPRequest{Phone: "+1 (555) 000-1234"})
	require.NoError(t, err)
	assert.Empty(t, res.DevCode, "codes are never echoed outside dev mode")
	assert.Equal(t, "+15550001234", f.sender.lastPhone)
	assert.Len(t, f.sender.lastCode, domain.OTPCodeLength)
	assert.NotEqual(t, f.sender.lastCode, f.otps.challenges[0].CodeHash, "only the hash is stored")

	sess, err := f.svc.VerifyOTP(ctx, &domain.OTPVerify{Phone: "+15550001234", Code: f.sender.lastCode})
	require.NoError(t, err)
	assert.Nil(t, sess.Actor.UserID)

	claims, err := auth.Parse(sess.AccessToken, testSecret)
	require.NoError(t, err)
	assert.Zero(t, claims.Sub)
	assert.Equal(t, "+15550001234", claims.Phone)
	assert.Equal(t, domain.AuthMethodOTP, claims.Method)

	_, err = f.svc.VerifyOTP(ctx, &domain.OTPVerify{Phone: "+15550001234", Code: f.sender.lastCode})
	assert.True(t, isAuthError(err), "a code is consumed once")
}

func TestOTP_AttemptsExhausted(t *testing.T) {
	f := newAuthFixture(true)
	ctx := context.Background()

	res, err := f.svc.RequestOTP(ctx, &domain.OTPRequest{Phone: "5550001234"})
	require.NoError(t, err)
	require.Len(t, res.DevCode, domain.OTPCodeLength)

	wrong := "000000"
	if res.DevCode == wrong {
		wrong = "111111"
	}
	for i := 0; i < domain.MaxOTPAttempts; i++ {
		_, err := f.svc.VerifyOTP(ctx, &domain.OTPVerify{Phone: "5550001234", Code: wrong})
		require.True(t, isAuthError(err))
	}

	_, err = f.svc.VerifyOTP(ctx, &domain.OTPVerify{Phone: "5550001234", Code: res.DevCode})
	assert.True(t, isAuthError(err), "correct code rejected once attempts are exhausted")
}

func TestOTP_Expired(t *testing.T) {
	f := newAuthFixture(true)
	ctx := context.Background()
	start := time.Now()
	f.svc.now = fixedClock(start)

	res, err := f.svc.RequestOTP(ctx, &domain.OTPRequest{Phone: "5550001234"})
	require.NoError(t, err)

	f.svc.now = fixedClock(start.Add(6 * time.Minute))
	_, err = f.svc.VerifyOTP(ctx, &domain.OTPVerify{Phone: "5550001234", Code: res.DevCode})
	assert.True(t, isAuthError(err))
}

func TestOTP_SendFailure(t *testing.T) {
	f := newAuthFixture(false)
	f.sender.err = errBoom
	_, err := f.svc.RequestOTP(context.Background(), &domain.OTPRequest{Phone: "5550001234"})
	assert.ErrorIs(t, err, errBoom)

	dev := newAuthFixture(true)
	dev.sender.err = errBoom
	res, err := dev.svc.RequestOTP(context.Background(), &domain.OTPRequest{Phone: "5550001234"})
	require.NoError(t, err, "dev mode still hands out the code")
	assert.NotEmpty(t, res.DevCode)

	_, err = f.svc.RequestOTP(context.Background(), &domain.OTPRequest{Phone: "12"})
	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestOTP_UnregisteredPhone(t *testing.T) {
	f := newAuthFixture(true)
	ctx := context.Background()

	_, err := f.svc.RequestOTP(ctx, &domain.OTPRequest{Phone: "+1 555 999 0000"})
	assert.True(t, isAuthError(err))
	assert.Empty(t, f.otps.challenges, "no code is stored for an unregistered phone")
	assert.Empty(t, f.sender.lastCode, "no code is sent to an unregistered phone")

	// A code issued while the phone was registered stops working once it is removed.
	res, err := f.svc.RequestOTP(ctx, &domain.OTPRequest{Phone: "5550001234"})
	require.NoError(t, err)
	revoked := NewAuthService(f.users, f.otps, f.sender, config.AuthConfig{
		JWTSecret: testSecret, AccessTokenTTL: time.Hour, OTPTTL: 5 * time.Minute,
	}, true, nil)
	_, err = revoked.VerifyOTP(ctx, &domain.OTPVerify{Phone: "5550001234", Code: res.DevCode})
	assert.True(t, isAuthError(err))
}

func TestEnsureBootstrapUser(t *testing.T) {
	f := newAuthFixture(false)
	ctx := context.Background()

	require.NoError(t, f.svc.EnsureBootstrapUser(ctx, "", ""))
	assert.Empty(t, f.users.users)

	require.NoError(t, f.svc.EnsureBootstrapUser(ctx, "admin", "bootstrap-pass"))
	require.NoError(t, f.svc.EnsureBootstrapUser(ctx, "other", "bootstrap-pass"))
	assert.Len(t, f.users.users, 1)
	assert.NotNil(t, f.users.users["admin"])
}
