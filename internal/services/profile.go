package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// UploadURLPrefix is where the upload directory is served from.
const UploadURLPrefix = "/uploads/"

var (
	pictureExtensions = []string{".jpg", ".jpeg", ".png"}
	pictureMIMETypes  = []string{"image/jpeg", "image/png"}
)

type ProfileService struct {
	db  *gorm.DB
	cfg *config.UploadConfig
}

func NewProfileService(db *gorm.DB, cfg *config.UploadConfig) *ProfileService {
	return &ProfileService{db: db, cfg: cfg}
}

// Upload is a file received from a client. Size is what the client
// declared; the stored size is checked again while copying.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// UploadPicture stores a JPEG or PNG as the caller's profile picture and
// returns the updated user.
func (s *ProfileService) UploadPicture(ctx context.Context, id Identity, up Upload) (*models.User, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	maxBytes := s.cfg.MaxBytes
	if up.Size > maxBytes {
		return nil, validationError(fmt.Sprintf("file is too large, maximum size is %d bytes", maxBytes))
	}

	base := filepath.Base(strings.ReplaceAll(up.Filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if !lo.Contains(pictureExtensions, ext) {
		return nil, validationError("only JPG, JPEG and PNG files are allowed")
	}

	head := make([]byte, 3072)
	n, err := io.ReadFull(up.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	mtype := mimetype.Detect(head)
	if !lo.ContainsBy(pictureMIMETypes, func(m string) bool { return mtype.Is(m) }) {
		return nil, validationError("file is not a JPEG or PNG image")
	}

	if err := os.MkdirAll(s.cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + "_" + base
	path := filepath.Join(s.cfg.Dir, name)
	if err := writeLimited(path, io.MultiReader(bytes.NewReader(head), up.Content), maxBytes); err != nil {
		return nil, err
	}

	url := UploadURLPrefix + name
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id.UserID).Update("profile_picture", url)
	if res.Error != nil || res.RowsAffected == 0 {
		_ = os.Remove(path)
		if res.Error != nil {
			return nil, persistenceError("store profile picture", res.Error)
		}
		return nil, ErrNotFound
	}

	logger.Info().Uint("user_id", id.UserID).Str("file", name).Str("mime", mtype.String()).Msg("profile picture updated")

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id.UserID).Error; err != nil {
		return nil, persistenceError("reload user", err)
	}
	return &user, nil
}

// writeLimited copies r to path and removes the file again when r holds
// more than maxBytes.
func writeLimited(path string, r io.Reader, maxBytes int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write upload file: %w", err)
	}
	if written > maxBytes {
		_ = os.Remove(path)
		return validationError(fmt.Sprintf("file is too large, maximum size is %d bytes", maxBytes))
	}
	return nil
}
