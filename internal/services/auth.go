package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/utils"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// Roles a visitor may pick when registering. Admins are only ever seeded.
var registrableRoles = []string{models.RoleUser, models.RoleGuest}

// errLoginFailed does not say whether the email, the role or the password
// was wrong.
var errLoginFailed = fmt.Errorf("%w: invalid email, role or password", ErrInvalidCredentials)

var checkPassword = utils.CheckPassword

// dummyPasswordHash is compared against when no user matches, so unknown
// emails cost as much as wrong passwords.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, err := utils.HashPassword(uuid.NewString())
	if err != nil {
		logger.Error().Err(err).Msg("failed to build dummy password hash")
	}
	return hash
})

type AuthService struct {
	db       *gorm.DB
	sessions *SessionService
	google   GoogleVerifier
}

func NewAuthService(db *gorm.DB, sessions *SessionService, google GoogleVerifier) *AuthService {
	return &AuthService{
		db:       db,
		sessions: sessions,
		google:   google,
	}
}

type RegisterRequest struct {
	Username        string `json:"username" form:"username" validate:"required,max=100"`
	Email           string `json:"email" form:"email" validate:"required,email,max=255"`
	Password        string `json:"password" form:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `json:"role" form:"role" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Role     string `json:"role" form:"role" validate:"required,oneof=admin user guest"`
}

type GoogleLoginRequest struct {
	Credential string `json:"credential" form:"credential" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" form:"old_password" validate:"required"`
	NewPassword string `json:"new_password" form:"new_password" validate:"required,min=6,max=72"`
}

// ClientInfo describes where a login came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type LoginResult struct {
	User    *models.User
	Session *IssuedSession
}

// Register creates a user account and logs it in.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest, client ClientInfo) (*LoginResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = normalizeEmail(req.Email)
	req.Role = strings.TrimSpace(req.Role)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if !lo.Contains(registrableRoles, req.Role) {
		return nil, validationError("role must be one of: " + strings.Join(registrableRoles, ", "))
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, persistenceError("check email", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now()
	user := &models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashed,
		Role:      req.Role,
		IsActive:  true,
		LastLogin: &now,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, persistenceError("create user", err)
	}

	logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return s.startSession(ctx, user, client)
}

// Login authenticates by email, role and password.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, client ClientInfo) (*LoginResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ? AND role = ?", req.Email, req.Role).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// same bcrypt work as a real mismatch
			checkPassword(req.Password, dummyPasswordHash())
			return nil, errLoginFailed
		}
		return nil, persistenceError("load user", err)
	}

	if !checkPassword(req.Password, user.Password) {
		logger.Warn().Uint("user_id", user.ID).Str("ip", client.IP).Msg("password mismatch")
		return nil, errLoginFailed
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	if err := s.touchLastLogin(ctx, &user); err != nil {
		return nil, err
	}
	return s.startSession(ctx, &user, client)
}

// LoginWithGoogle admits a user whose verified Google email belongs to an
// existing account. Google Sign-In never creates accounts.
func (s *AuthService) LoginWithGoogle(ctx context.Context, req *GoogleLoginRequest, client ClientInfo) (*LoginResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if s.google == nil {
		return nil, validationError("google sign-in is not configured")
	}

	identity, err := s.google.Verify(ctx, req.Credential)
	if err != nil {
		logger.Warn().Err(err).Str("ip", client.IP).Msg("google token rejected")
		return nil, fmt.Errorf("%w: invalid google token", ErrInvalidCredentials)
	}
	if identity.Email == "" || !identity.EmailVerified {
		return nil, fmt.Errorf("%w: google account email is not verified", ErrInvalidCredentials)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(identity.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, persistenceError("load user", err)
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	if err := s.touchLastLogin(ctx, &user); err != nil {
		return nil, err
	}
	return s.startSession(ctx, &user, client)
}

func (s *AuthService) startSession(ctx context.Context, user *models.User, client ClientInfo) (*LoginResult, error) {
	issued, err := s.sessions.Create(ctx, user, client.IP, client.UserAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, Session: issued}, nil
}

func (s *AuthService) touchLastLogin(ctx context.Context, user *models.User) error {
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(user).Update("last_login", now).Error; err != nil {
		return persistenceError("update last login", err)
	}
	user.LastLogin = &now
	return nil
}

// Logout revokes the caller's session.
func (s *AuthService) Logout(ctx context.Context, id Identity) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, id.SessionID)
}

func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("load user", err)
	}
	return &user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, id Identity, req *ChangePasswordRequest) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}

	user, err := s.GetUserByID(ctx, id.UserID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return fmt.Errorf("%w: incorrect old password", ErrInvalidCredentials)
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hashed).Error; err != nil {
		return persistenceError("update password", err)
	}
	return nil
}

// CreateAdminIfNotExists seeds the configured admin account when no admin exists yet.
func (s *AuthService) CreateAdminIfNotExists(cfg *config.AdminConfig) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return persistenceError("count admins", err)
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	admin := models.User{
		Username: cfg.Username,
		Email:    normalizeEmail(cfg.Email),
		Password: hashed,
		Role:     models.RoleAdmin,
		IsActive: true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return persistenceError("create admin", err)
	}

	logger.Warn().Str("email", admin.Email).Msg("default admin account created, change its password")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
