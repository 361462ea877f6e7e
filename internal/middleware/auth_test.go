package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/internal/utils"
	"github.com/huangang/studyroom/pkg/logger"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
	logger.SetOutput(io.Discard)
}

type authFixture struct {
	db       *gorm.DB
	cfg      *config.SessionConfig
	sessions *services.SessionService
	user     *models.User
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	db, err := models.Open(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	user := &models.User{Username: "testuser", Email: "testuser@example.com", Role: models.RoleUser, IsActive: true}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	cfg := config.DefaultConfig().Session
	return &authFixture{
		db:       db,
		cfg:      &cfg,
		sessions: services.NewSessionService(db, &cfg),
		user:     user,
	}
}

func (f *authFixture) login(t *testing.T) *services.IssuedSession {
	t.Helper()
	issued, err := f.sessions.Create(context.Background(), f.user, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return issued
}

func (f *authFixture) router() *gin.Engine {
	router := gin.New()
	router.Use(AuthRequired(f.sessions, f.cfg))
	router.GET("/protected", func(c *gin.Context) {
		id := CurrentIdentity(c)
		c.JSON(200, gin.H{
			"user_id":    id.UserID,
			"username":   id.Username,
			"role":       id.Role,
			"session_id": id.SessionID,
			"csrf":       CSRFToken(c),
		})
	})
	return router
}

func TestAuthRequired_NoCredentials(t *testing.T) {
	f := newAuthFixture(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	f.router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	f := newAuthFixture(t)
	router := f.router()

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
		"Bearer ",
	}

	for _, authHeader := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", authHeader)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	f := newAuthFixture(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	f.router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_ValidBearer(t *testing.T) {
	f := newAuthFixture(t)
	issued := f.login(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	f.router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Header().Get(SessionTokenHeader) != "" {
		t.Error("fresh sessions should not be rotated")
	}
}

func TestAuthRequired_ValidCookie(t *testing.T) {
	f := newAuthFixture(t)
	issued := f.login(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: f.cfg.CookieName, Value: issued.Token})
	f.router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAuthRequired_RevokedSessionClearsCookie(t *testing.T) {
	f := newAuthFixture(t)
	issued := f.login(t)
	if err := f.sessions.Revoke(context.Background(), issued.Session.ID); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: f.cfg.CookieName, Value: issued.Token})
	f.router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	cleared := false
	for _, c := range w.Result().Cookies() {
		if c.Name == f.cfg.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("revoked session cookie should be cleared")
	}
}

func TestAuthRequired_RotatesStaleSession(t *testing.T) {
	f := newAuthFixture(t)
	issued := f.login(t)
	if err := f.db.Model(&models.Session{}).
		Where("id = ?", issued.Session.ID).
		Update("rotated_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatal(err)
	}

	router := f.router()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.AddCookie(&http.Cookie{Name: f.cfg.CookieName, Value: issued.Token})
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	rotated := w.Header().Get(SessionTokenHeader)
	if rotated == "" || rotated == issued.Token {
		t.Fatal("a rotated token should be returned")
	}

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == f.cfg.CookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != rotated {
		t.Fatal("rotated token should be set as the session cookie")
	}
	if !cookie.HttpOnly || cookie.SameSite != http.SameSiteStrictMode {
		t.Error("session cookie should be HttpOnly and SameSite=Strict")
	}

	// the old token is revoked, the new one works
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Token)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("old token: expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+rotated)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("new token: expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestAdminRequired_NoRole(t *testing.T) {
	router := gin.New()
	router.Use(AdminRequired())
	router.GET("/admin", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestAdminRequired_UserRole(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextRole, "user")
		c.Next()
	})
	router.Use(AdminRequired())
	router.GET("/admin", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestAdminRequired_AdminRole(t *testing.T) {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextRole, "admin")
		c.Next()
	})
	router.Use(AdminRequired())
	router.GET("/admin", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestCurrentIdentity(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := CurrentIdentity(c); id.Authenticated() {
		t.Errorf("expected zero identity, got %+v", id)
	}

	c.Set(ContextUserID, uint(42))
	c.Set(ContextUsername, "testuser")
	c.Set(ContextRole, "admin")
	c.Set(ContextSessionID, "sess-1")

	id := CurrentIdentity(c)
	if id.UserID != 42 || id.Username != "testuser" || id.SessionID != "sess-1" {
		t.Errorf("unexpected identity %+v", id)
	}
	if !id.IsAdmin() {
		t.Error("identity should be admin")
	}
}

func TestContextConstants(t *testing.T) {
	if ContextUserID != "user_id" {
		t.Errorf("ContextUserID = %q, expected %q", ContextUserID, "user_id")
	}
	if ContextUsername != "username" {
		t.Errorf("ContextUsername = %q, expected %q", ContextUsername, "username")
	}
	if ContextRole != "role" {
		t.Errorf("ContextRole = %q, expected %q", ContextRole, "role")
	}
}
