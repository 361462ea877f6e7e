package services

import (
	"context"
	"testing"

	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestAuthService(db *gorm.DB) *AuthService {
	return NewAuthService(db, NewSessionService(db, testSessionConfig()), nil)
}

func validRegisterRequest() *RegisterRequest {
	return &RegisterRequest{
		Username:        "alice",
		Email:           "Alice@Example.com ",
		Password:        "secret123",
		ConfirmPassword: "secret123",
		Role:            models.RoleUser,
	}
}

func TestAuthService_Register(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	svc := newTestAuthService(db)

	result, err := svc.Register(context.Background(), validRegisterRequest(), ClientInfo{IP: "127.0.0.1"})
	req.NoError(err)
	req.Equal("alice@example.com", result.User.Email)
	req.True(result.User.IsActive)
	req.NotEmpty(result.Session.Token)
	req.True(utils.CheckPassword("secret123", result.User.Password))

	_, err = svc.Register(context.Background(), validRegisterRequest(), ClientInfo{})
	req.ErrorIs(err, ErrEmailTaken)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
	}{
		{"missing username", func(r *RegisterRequest) { r.Username = " " }},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }},
		{"short password", func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "abc", "abc" }},
		{"password mismatch", func(r *RegisterRequest) { r.ConfirmPassword = "different" }},
		{"missing role", func(r *RegisterRequest) { r.Role = "" }},
		{"admin role", func(r *RegisterRequest) { r.Role = models.RoleAdmin }},
		{"unknown role", func(r *RegisterRequest) { r.Role = "moderator" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			svc := newTestAuthService(db)

			in := validRegisterRequest()
			tt.mutate(in)
			_, err := svc.Register(context.Background(), in, ClientInfo{})
			require.ErrorIs(t, err, ErrValidation)

			var users int64
			require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
			require.Zero(t, users)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestAuthService(db)
	user := createTestUser(t, db, "bob", models.RoleUser)
	disabled := createTestUser(t, db, "mallory", models.RoleUser)
	require.NoError(t, db.Model(disabled).Update("is_active", false).Error)

	tests := []struct {
		name    string
		req     LoginRequest
		wantErr error
	}{
		{"valid", LoginRequest{Email: "BOB@example.com", Password: "secret123", Role: models.RoleUser}, nil},
		{"role mismatch", LoginRequest{Email: user.Email, Password: "secret123", Role: models.RoleGuest}, ErrInvalidCredentials},
		{"unknown email", LoginRequest{Email: "nobody@example.com", Password: "secret123", Role: models.RoleUser}, ErrInvalidCredentials},
		{"wrong password", LoginRequest{Email: user.Email, Password: "nope", Role: models.RoleUser}, ErrInvalidCredentials},
		{"disabled", LoginRequest{Email: disabled.Email, Password: "secret123", Role: models.RoleUser}, ErrUserDisabled},
		{"invalid role", LoginRequest{Email: user.Email, Password: "secret123", Role: "root"}, ErrValidation},
		{"missing password", LoginRequest{Email: user.Email, Role: models.RoleUser}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.req
			result, err := svc.Login(context.Background(), &in, ClientInfo{})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, user.ID, result.User.ID)
			require.NotNil(t, result.User.LastLogin)

			resolved, err := svc.sessions.Resolve(context.Background(), result.Session.Token)
			require.NoError(t, err)
			require.Equal(t, user.ID, resolved.Identity.UserID)
		})
	}
}

func TestAuthService_GoogleNotConfigured(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestAuthService(db)

	_, err := svc.LoginWithGoogle(context.Background(), &GoogleLoginRequest{Credential: "token"}, ClientInfo{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Logout(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	svc := newTestAuthService(db)
	user := createTestUser(t, db, "carol", models.RoleUser)

	result, err := svc.Login(context.Background(), &LoginRequest{Email: user.Email, Password: "secret123", Role: models.RoleUser}, ClientInfo{})
	req.NoError(err)

	id := identityOf(user)
	id.SessionID = result.Session.Session.ID
	req.NoError(svc.Logout(context.Background(), id))

	_, err = svc.sessions.Resolve(context.Background(), result.Session.Token)
	req.ErrorIs(err, ErrUnauthenticated)

	req.ErrorIs(svc.Logout(context.Background(), Identity{}), ErrUnauthenticated)
}

func TestAuthService_ChangePassword(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	svc := newTestAuthService(db)
	user := createTestUser(t, db, "dave", models.RoleUser)

	err := svc.ChangePassword(context.Background(), identityOf(user), &ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newsecret"})
	req.ErrorIs(err, ErrInvalidCredentials)

	err = svc.ChangePassword(context.Background(), identityOf(user), &ChangePasswordRequest{OldPassword: "secret123", NewPassword: "123"})
	req.ErrorIs(err, ErrValidation)

	req.NoError(svc.ChangePassword(context.Background(), identityOf(user), &ChangePasswordRequest{OldPassword: "secret123", NewPassword: "newsecret"}))

	stored, err := svc.GetUserByID(context.Background(), user.ID)
	req.NoError(err)
	req.True(utils.CheckPassword("newsecret", stored.Password))

	_, err = svc.GetUserByID(context.Background(), 9999)
	req.ErrorIs(err, ErrNotFound)
}

func TestAuthService_CreateAdminIfNotExists(t *testing.T) {
	req := require.New(t)
	db := setupTestDB(t)
	svc := newTestAuthService(db)
	cfg := config.DefaultConfig().Admin

	req.NoError(svc.CreateAdminIfNotExists(&cfg))
	req.NoError(svc.CreateAdminIfNotExists(&cfg))

	var admins []models.User
	req.NoError(db.Where("role = ?", models.RoleAdmin).Find(&admins).Error)
	req.Len(admins, 1)
	req.Equal(cfg.Email, admins[0].Email)
	req.True(utils.CheckPassword(cfg.Password, admins[0].Password))
}

func TestAuthService_LoginFailuresLookAlike(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestAuthService(db)
	user := createTestUser(t, db, "carl", models.RoleUser)

	checks := 0
	orig := checkPassword
	checkPassword = func(password, hash string) bool {
		checks++
		return orig(password, hash)
	}
	t.Cleanup(func() { checkPassword = orig })

	failures := []LoginRequest{
		{Email: "nobody@example.com", Password: "secret123", Role: models.RoleUser},
		{Email: user.Email, Password: "secret123", Role: models.RoleGuest},
		{Email: user.Email, Password: "wrong-password", Role: models.RoleUser},
	}

	var messages []string
	for _, in := range failures {
		checks = 0
		_, err := svc.Login(context.Background(), &in, ClientInfo{})
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Equal(t, 1, checks, "every failed login must run one bcrypt comparison")
		messages = append(messages, err.Error())
	}

	require.Equal(t, messages[0], messages[1])
	require.Equal(t, messages[0], messages[2])
}
