// Package seed fills a database with demo accounts, projects, tasks, notifications and
// carts. It is meant for development and tests only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"keystone/internal/auth"
	"keystone/internal/config"
	"keystone/internal/middleware"
	"keystone/internal/models"
	"keystone/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is shared by every seeded account.
const DemoPassword = "password123"

// Options sizes a seeding run.
type Options struct {
	Users            int
	ProjectsPerUser  int
	TasksPerProject  int
	CartItemsPerUser int
	Clean            bool
}

// DefaultOptions is what cmd/seed uses without flags.
func DefaultOptions() Options {
	return Options{
		Users:            10,
		ProjectsPerUser:  3,
		TasksPerProject:  5,
		CartItemsPerUser: 2,
		Clean:            true,
	}
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	Projects      int
	Tasks         int
	Notifications int
	CartItems     int
}

// Seeder writes demo rows through GORM.
type Seeder struct {
	db     *gorm.DB
	fake   *gofakeit.Faker
	hasher *auth.PasswordHasher
}

// NewSeeder returns a seeder whose fake data is reproducible for a given randSeed; 0 picks
// a time-based seed.
func NewSeeder(db *gorm.DB, randSeed int64) *Seeder {
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	return &Seeder{
		db:   db,
		fake: gofakeit.New(randSeed),
		// Demo accounts do not need a production work factor.
		hasher: auth.NewPasswordHasher(bcrypt.MinCost),
	}
}

// Run clears (optionally) and seeds every table.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.Clean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	users, err := s.SeedUsers(ctx, opts.Users)
	if err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	projects, err := s.SeedProjects(ctx, users, opts.ProjectsPerUser)
	if err != nil {
		return nil, fmt.Errorf("seed projects: %w", err)
	}
	tasks, err := s.SeedTasks(ctx, projects, opts.TasksPerProject, users)
	if err != nil {
		return nil, fmt.Errorf("seed tasks: %w", err)
	}
	notifications, err := s.SeedNotifications(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("seed notifications: %w", err)
	}
	cartItems, err := s.SeedCarts(ctx, users, opts.CartItemsPerUser)
	if err != nil {
		return nil, fmt.Errorf("seed carts: %w", err)
	}

	summary := &Summary{
		Users:         len(users),
		Projects:      len(projects),
		Tasks:         len(tasks),
		Notifications: notifications,
		CartItems:     cartItems,
	}
	middleware.Logger.InfoContext(ctx, "database seeded",
		slog.Int("users", summary.Users),
		slog.Int("projects", summary.Projects),
		slog.Int("tasks", summary.Tasks),
		slog.Int("notifications", summary.Notifications),
		slog.Int("cart_items", summary.CartItems),
	)
	return summary, nil
}

// ClearAll deletes every row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	all := models.AllModels()
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}

// SeedUsers creates n accounts, each with a completed profile.
func (s *Seeder) SeedUsers(ctx context.Context, n int) ([]models.User, error) {
	if n <= 0 {
		return nil, nil
	}
	hash, err := s.hasher.Hash(DemoPassword)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, s.buildUser(i, hash))
	}
	if err := s.db.WithContext(ctx).Create(&users).Error; err != nil {
		return nil, err
	}

	profiles := make([]models.Profile, 0, n)
	for _, u := range users {
		profiles = append(profiles, models.Profile{
			UserID:     u.ID,
			Name:       u.Name,
			Username:   u.Username,
			Phone:      u.Phone,
			IsComplete: true,
		})
	}
	if err := s.db.WithContext(ctx).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SeedProjects gives every owner perUser projects.
func (s *Seeder) SeedProjects(ctx context.Context, owners []models.User, perUser int) ([]models.Project, error) {
	if perUser <= 0 || len(owners) == 0 {
		return nil, nil
	}
	projects := make([]models.Project, 0, len(owners)*perUser)
	for _, owner := range owners {
		for i := 0; i < perUser; i++ {
			projects = append(projects, s.buildProject(owner.ID))
		}
	}
	if err := s.db.WithContext(ctx).Create(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// SeedTasks adds perProject tasks to each project. About half are assigned to a random
// user from assignees.
func (s *Seeder) SeedTasks(ctx context.Context, projects []models.Project, perProject int, assignees []models.User) ([]models.Task, error) {
	if perProject <= 0 || len(projects) == 0 {
		return nil, nil
	}
	tasks := make([]models.Task, 0, len(projects)*perProject)
	for _, p := range projects {
		for i := 0; i < perProject; i++ {
			task := s.buildTask(p)
			if len(assignees) > 0 && s.fake.Bool() {
				id := assignees[s.fake.Number(0, len(assignees)-1)].ID
				task.AssignedTo = &id
			}
			tasks = append(tasks, task)
		}
	}
	if err := s.db.WithContext(ctx).Create(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// SeedNotifications writes the assignment notice for every assigned task.
func (s *Seeder) SeedNotifications(ctx context.Context, tasks []models.Task) (int, error) {
	var rows []models.Notification
	for _, t := range tasks {
		if t.AssignedTo == nil {
			continue
		}
		rows = append(rows, models.Notification{
			Title:   "New task assigned",
			Message: fmt.Sprintf("You have been assigned %q.", t.Title),
			Date:    s.fake.DateRange(time.Now().AddDate(0, 0, -14), time.Now()),
			UserID:  *t.AssignedTo,
			Read:    s.fake.Bool(),
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// SeedCarts puts up to perUser distinct sponsored games in each cart.
func (s *Seeder) SeedCarts(ctx context.Context, users []models.User, perUser int) (int, error) {
	if perUser <= 0 || len(users) == 0 {
		return 0, nil
	}
	games, err := service.NewCatalogService(&config.Config{}, nil, nil).Sponsored()
	if err != nil {
		return 0, err
	}
	if perUser > len(games) {
		perUser = len(games)
	}

	var items []models.CartItem
	for _, u := range users {
		s.fake.ShuffleAnySlice(games)
		for _, g := range games[:perUser] {
			items = append(items, models.CartItem{
				UserID:   u.ID,
				GameID:   string(g.ID),
				Name:     g.Name,
				CoverURL: g.CoverURL,
				Price:    g.Price,
			})
		}
	}
	if len(items) == 0 {
		return 0, nil
	}
	if err := s.db.WithContext(ctx).Create(&items).Error; err != nil {
		return 0, err
	}
	return len(items), nil
}

func sanitizeUsername(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 20 {
		out = out[:20]
	}
	if len(out) < 3 {
		out = "user" + out
	}
	return out
}
