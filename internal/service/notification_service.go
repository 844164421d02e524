package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"keystone/internal/featureflags"
	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/repository"
)

// InboxLimit caps how many notifications a listing returns.
const InboxLimit = 50

// Publisher pushes a stored notification to the recipient's live connections.
type Publisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
	flags     *featureflags.Manager
	now       func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, publisher Publisher, flags *featureflags.Manager) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher, flags: flags, now: time.Now}
}

func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, userID, InboxLimit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) (*models.Notification, error) {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// Create stores a notification unconditionally and publishes it.
func (s *NotificationService) Create(ctx context.Context, userID uint, title, message string) (*models.Notification, error) {
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" || message == "" {
		return nil, models.NewValidationError("title and message are required")
	}

	n := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Date:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			middleware.Logger.WarnContext(ctx, "notification publish failed",
				slog.Uint64("notification_id", uint64(n.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return n, nil
}

// Notify is Create gated by the task_notifications flag for the recipient. It returns
// nil, nil when the flag is off.
func (s *NotificationService) Notify(ctx context.Context, userID uint, title, message string) (*models.Notification, error) {
	if !s.flags.Enabled(featureflags.TaskNotifications, userID) {
		return nil, nil
	}
	return s.Create(ctx, userID, title, message)
}
