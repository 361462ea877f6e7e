package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/response"
	"gorm.io/gorm"
)

// ProfilePictureField is the multipart field carrying the picture.
const ProfilePictureField = "profile_picture"

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(db *gorm.DB, cfg *config.Config) *ProfileHandler {
	return &ProfileHandler{profileService: services.NewProfileService(db, &cfg.Upload)}
}

// UploadPicture replaces the caller's profile picture
// POST /api/profile/picture
func (h *ProfileHandler) UploadPicture(c *gin.Context) {
	header, err := c.FormFile(ProfilePictureField)
	if err != nil {
		response.BadRequest(c, "missing "+ProfilePictureField+" file")
		return
	}

	file, err := header.Open()
	if err != nil {
		response.BadRequest(c, "cannot read uploaded file")
		return
	}
	defer file.Close()

	user, err := h.profileService.UploadPicture(c.Request.Context(), middleware.CurrentIdentity(c), services.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, user)
}
