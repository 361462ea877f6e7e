package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/utils"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	csrfTokenBytes    = 32
	sessionCleanupJob = "session_cleanup"
)

type SessionService struct {
	db            *gorm.DB
	cfg           *config.SessionConfig
	cronScheduler *cron.Cron
	now           func() time.Time
}

func NewSessionService(db *gorm.DB, cfg *config.SessionConfig) *SessionService {
	return &SessionService{
		db:  db,
		cfg: cfg,
		now: time.Now,
	}
}

// IssuedSession is a freshly stored session together with the signed token
// that refers to it.
type IssuedSession struct {
	Session   *models.Session
	Token     string
	ExpiresAt time.Time
}

// ResolvedSession is the result of authenticating a request token.
type ResolvedSession struct {
	Session  *models.Session
	Identity Identity
}

// NeedsRotation reports whether the session has outlived the rotation interval.
func (r *ResolvedSession) NeedsRotation(now time.Time, interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	return now.Sub(r.Session.RotatedAt) >= interval
}

func (s *SessionService) ttl() time.Duration {
	hours := s.cfg.ExpireHour
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// RotateInterval is how long a session id is used before it is replaced.
func (s *SessionService) RotateInterval() time.Duration {
	return s.cfg.RotateInterval
}

func (s *SessionService) sign(sess *models.Session, user *models.User) (*IssuedSession, error) {
	token, err := utils.GenerateToken(sess.ID, user.ID, user.Username, user.Role, int(s.ttl()/time.Hour))
	if err != nil {
		return nil, err
	}
	return &IssuedSession{Session: sess, Token: token, ExpiresAt: sess.ExpiresAt}, nil
}

// Create starts a new session for user with a fresh CSRF token.
func (s *SessionService) Create(ctx context.Context, user *models.User, clientIP, userAgent string) (*IssuedSession, error) {
	csrf, err := utils.RandomHex(csrfTokenBytes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sess := &models.Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		CSRFToken:   csrf,
		ExpiresAt:   now.Add(s.ttl()),
		RotatedAt:   now,
		CreatedByIP: clientIP,
		UserAgent:   truncate(userAgent, 255),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(sess).Error; err != nil {
		return nil, persistenceError("create session", err)
	}

	return s.sign(sess, user)
}

// Resolve authenticates a session token. Unknown, expired and revoked
// sessions all come back as ErrUnauthenticated.
func (s *SessionService) Resolve(ctx context.Context, token string) (*ResolvedSession, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	var sess models.Session
	if err := s.db.WithContext(ctx).Preload("User").Where("id = ?", claims.ID).First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, persistenceError("load session", err)
	}

	if !sess.Active(s.now()) || sess.UserID != claims.UserID {
		return nil, ErrUnauthenticated
	}
	if sess.User == nil || !sess.User.IsActive {
		return nil, ErrUnauthenticated
	}

	return &ResolvedSession{
		Session: &sess,
		Identity: Identity{
			UserID:    sess.User.ID,
			Username:  sess.User.Username,
			Role:      sess.User.Role,
			SessionID: sess.ID,
		},
	}, nil
}

// Rotate replaces the session with a new id carrying the same CSRF token and
// flash, and revokes the old row. It returns nil when another request
// rotated the session first.
func (s *SessionService) Rotate(ctx context.Context, resolved *ResolvedSession) (*IssuedSession, error) {
	old := resolved.Session
	now := s.now()

	next := &models.Session{
		ID:          uuid.NewString(),
		UserID:      old.UserID,
		CSRFToken:   old.CSRFToken,
		Flash:       old.Flash,
		ExpiresAt:   now.Add(s.ttl()),
		RotatedAt:   now,
		CreatedByIP: old.CreatedByIP,
		UserAgent:   old.UserAgent,
	}

	rotated := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND revoked_at IS NULL", old.ID).
			Update("revoked_at", now)
		if res.Error != nil {
			return persistenceError("revoke rotated session", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		if err := tx.Omit(clause.Associations).Create(next).Error; err != nil {
			return persistenceError("create rotated session", err)
		}
		rotated = true
		return nil
	})
	if err != nil || !rotated {
		return nil, err
	}

	logger.Debug().Str("old_session", old.ID).Str("new_session", next.ID).Uint("user_id", old.UserID).Msg("session rotated")
	return s.sign(next, &models.User{
		ID:       resolved.Identity.UserID,
		Username: resolved.Identity.Username,
		Role:     resolved.Identity.Role,
	})
}

// Revoke ends the session. Revoking an already revoked session is a no-op.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", s.now()).Error; err != nil {
		return persistenceError("revoke session", err)
	}
	return nil
}

// SetFlash stores a one-shot message shown on the next dashboard load.
func (s *SessionService) SetFlash(ctx context.Context, sessionID, msg string) error {
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("flash", truncate(msg, 500)).Error; err != nil {
		return persistenceError("set flash", err)
	}
	return nil
}

// PopFlash returns the pending flash message and clears it.
func (s *SessionService) PopFlash(ctx context.Context, sessionID string) (string, error) {
	var msg string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess models.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "flash").
			Where("id = ?", sessionID).
			First(&sess).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnauthenticated
			}
			return persistenceError("load flash", err)
		}
		if sess.Flash == "" {
			return nil
		}

		msg = sess.Flash
		if err := tx.Model(&models.Session{}).Where("id = ?", sessionID).Update("flash", "").Error; err != nil {
			return persistenceError("clear flash", err)
		}
		return nil
	})
	return msg, err
}

// CleanupExpired deletes sessions that expired or were revoked.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", s.now()).
		Delete(&models.Session{})
	if res.Error != nil {
		return 0, persistenceError("cleanup sessions", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *SessionService) StartCleanupScheduler() error {
	spec := s.cfg.CleanupSpec
	if spec == "" {
		spec = "@hourly"
	}

	s.cronScheduler = cron.New()
	if _, err := s.cronScheduler.AddFunc(spec, func() {
		s.runScheduledCleanup(context.Background())
	}); err != nil {
		return err
	}

	s.cronScheduler.Start()
	logger.Info().Str("spec", spec).Msg("session cleanup scheduler started")
	return nil
}

// runScheduledCleanup runs CleanupExpired unless another instance already
// did so in the current lock window. It reports whether it ran.
func (s *SessionService) runScheduledCleanup(ctx context.Context) bool {
	acquired, err := acquireSchedulerLock(ctx, s.db, sessionCleanupJob, s.now())
	if err != nil {
		logger.Error().Err(err).Msg("session cleanup lock failed")
		return false
	}
	if !acquired {
		logger.Debug().Msg("session cleanup already ran in this window")
		return false
	}

	removed, err := s.CleanupExpired(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("session cleanup failed")
		return false
	}
	if removed > 0 {
		logger.Info().Int64("removed", removed).Msg("expired sessions removed")
	}
	return true
}

func (s *SessionService) StopCleanupScheduler() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// truncate returns valid UTF-8 of at most max bytes, cut on a rune boundary.
func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
