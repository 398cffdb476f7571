package db

import (
	"os"

	"rankedbyus/internal/logging"
	"rankedbyus/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=rankedbyus port=5432 sslmode=disable"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		// Unique violations must surface as gorm.ErrDuplicatedKey so the vote
		// ledger can treat a lost create race as an idempotent no-op.
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.L().Fatal().Err(err).Msg("failed to connect to database")
	}

	logging.L().Info().Msg("database connection established")

	if err := Migrate(DB); err != nil {
		logging.L().Fatal().Err(err).Msg("failed to migrate database")
	}
	logging.L().Info().Msg("database migration completed")

	seedCategories()
}

// Migrate applies the schema. Split out so tests can run it against their own
// database instance.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Tool{},
		&models.Vote{},
		&models.Review{},
		&models.Article{},
		&models.Submission{},
		&models.Sponsor{},
	)
}

func seedCategories() {
	var count int64
	DB.Model(&models.Category{}).Count(&count)
	if count > 0 {
		logging.L().Debug().Msg("categories already seeded, skipping")
		return
	}

	categories := []models.Category{
		{Slug: "writing", Name: "Writing", Description: "Copywriting, editing and content assistants", Position: 1},
		{Slug: "coding", Name: "Coding", Description: "Code generation, review and developer tooling", Position: 2},
		{Slug: "images", Name: "Images", Description: "Image generation and editing", Position: 3},
		{Slug: "audio-video", Name: "Audio & Video", Description: "Speech, music and video tools", Position: 4},
		{Slug: "productivity", Name: "Productivity", Description: "Agents, automation and workflow tools", Position: 5},
	}

	for _, category := range categories {
		if err := DB.Create(&category).Error; err != nil {
			logging.L().Warn().Err(err).Str("category", category.Name).Msg("failed to create category")
		}
	}
	logging.L().Info().Msg("initial categories created")
}
