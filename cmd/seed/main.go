// Command seed fills the configured database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"keystone/internal/config"
	"keystone/internal/database"
	"keystone/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	projects := flag.Int("projects", defaults.ProjectsPerUser, "Projects per user")
	tasks := flag.Int("tasks", defaults.TasksPerProject, "Tasks per project")
	cart := flag.Int("cart", defaults.CartItemsPerUser, "Cart items per user")
	shouldClean := flag.Bool("clean", defaults.Clean, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed (0 = time based)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	summary, err := seed.NewSeeder(db, *randSeed).Run(context.Background(), seed.Options{
		Users:            *numUsers,
		ProjectsPerUser:  *projects,
		TasksPerProject:  *tasks,
		CartItemsPerUser: *cart,
		Clean:            *shouldClean,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d projects, %d tasks, %d notifications, %d cart items",
		summary.Users, summary.Projects, summary.Tasks, summary.Notifications, summary.CartItems)
	log.Printf("All demo users have the password: %s", seed.DemoPassword)
}
