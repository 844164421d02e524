package service

import (
	"context"
	"sync"
	"testing"

	"keystone/internal/auth"
	"keystone/internal/cache"
	"keystone/internal/featureflags"
	"keystone/internal/models"
	"keystone/internal/repository"
	"keystone/internal/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// recordingPublisher captures published notifications.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (p *recordingPublisher) PublishNotification(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, *n)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type testEnv struct {
	db            *gorm.DB
	users         repository.UserRepository
	profiles      repository.ProfileRepository
	projects      repository.ProjectRepository
	tasks         repository.TaskRepository
	notifications repository.NotificationRepository
	publisher     *recordingPublisher
	notifier      *NotificationService
}

func newTestEnv(t *testing.T, flags string) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	env := &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db, cache.New(nil)),
		profiles:      repository.NewProfileRepository(db),
		projects:      repository.NewProjectRepository(db),
		tasks:         repository.NewTaskRepository(db),
		notifications: repository.NewNotificationRepository(db),
		publisher:     &recordingPublisher{},
	}
	env.notifier = NewNotificationService(env.notifications, env.publisher, featureflags.NewManager(flags))
	return env
}

func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	u := &models.User{Username: username, Email: username + "@x.com", Password: "hash"}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func newTestAuthService(users repository.UserRepository, c *cache.Cache) *AuthService {
	return NewAuthService(users, auth.NewTokenManager(testutil.TestJWTSecret), auth.NewPasswordHasher(bcrypt.MinCost), c)
}
