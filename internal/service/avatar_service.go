package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"keystone/internal/config"
	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/repository"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	AvatarSize        = 256
	AvatarWebPQuality = 80
	// MaxAvatarDimension bounds either side of an upload before it is decoded.
	MaxAvatarDimension = 4096
	// AvatarURLPrefix is where the server exposes UPLOAD_DIR/avatars.
	AvatarURLPrefix = "/images/avatars/"
	avatarDir       = "avatars"
)

type AvatarService struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	uploadDir   string
	maxBytes    int64
}

type UploadAvatarInput struct {
	UserID      uint
	ContentType string
	Content     []byte
}

func NewAvatarService(userRepo repository.UserRepository, profileRepo repository.ProfileRepository, cfg *config.Config) *AvatarService {
	return &AvatarService{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		uploadDir:   cfg.UploadDir,
		maxBytes:    cfg.MaxUploadBytes(),
	}
}

// Upload center-crops the image to a square, scales it to AvatarSize, stores it as WebP
// and points both the user and the profile at the new file. It returns the public URL.
func (s *AvatarService) Upload(ctx context.Context, in UploadAvatarInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}
	if !isAllowedImageMIME(http.DetectContentType(in.Content)) {
		return "", models.NewValidationError("Invalid image type")
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if header.Width > MaxAvatarDimension || header.Height > MaxAvatarDimension {
		return "", models.NewValidationError("Image too large")
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return "", models.NewValidationError("Invalid image file")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") && !isAllowedImageMIME(provided) {
		return "", models.NewValidationError("Unsupported image format")
	}

	avatar := resizeSquare(cropCenterSquare(decoded), AvatarSize)
	var buf bytes.Buffer
	if err := webp.Encode(&buf, avatar, &webp.Options{Quality: AvatarWebPQuality}); err != nil {
		return "", models.NewInternalError(fmt.Errorf("encode webp: %w", err))
	}

	name := uuid.NewString() + ".webp"
	path := filepath.Join(s.uploadDir, avatarDir, name)
	if err := writeBytesToFile(path, buf.Bytes()); err != nil {
		return "", models.NewInternalError(err)
	}

	url := AvatarURLPrefix + name
	if err := s.userRepo.UpdateAvatar(ctx, in.UserID, url); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	if err := s.profileRepo.SetAvatar(ctx, in.UserID, url); err != nil {
		return "", err
	}

	middleware.Logger.InfoContext(ctx, "avatar stored",
		slog.String("source_format", format),
		slog.Int("bytes", buf.Len()),
	)
	return url, nil
}

func cropCenterSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side <= 0 {
		return src
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2

	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeSquare(src image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
