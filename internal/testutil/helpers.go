package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glefebvre/housou/internal/models"
)

// TestDB creates an in-memory SQLite database with the selection table
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// every pooled connection would get its own empty :memory: database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.SelectionRecord{}); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// AssertCount verifies the count of records in a table
func AssertCount(t *testing.T, db *gorm.DB, model interface{}, expected int64, message string) {
	t.Helper()
	var count int64
	db.Model(model).Count(&count)
	if count != expected {
		t.Fatalf("%s: expected count %d, got %d", message, expected, count)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// NewItem builds an AnimeItem broadcasting on Sunday 2023-10-01 09:30 UTC
func NewItem(title string, overrides ...func(*models.AnimeItem)) models.AnimeItem {
	item := models.AnimeItem{
		Title: title,
		Type:  models.ItemTypeTV,
		Lang:  "ja",
		Begin: "2023-10-01T09:30:00Z",
		Sites: []models.SiteRef{
			{Site: "abema", ID: "26-100"},
			{Site: "bangumi", ID: "400602"},
		},
	}

	for _, override := range overrides {
		override(&item)
	}
	return item
}

// WithBegin sets the broadcast timestamp
func WithBegin(begin string) func(*models.AnimeItem) {
	return func(item *models.AnimeItem) {
		item.Begin = begin
	}
}

// WithSites replaces the site list
func WithSites(sites ...models.SiteRef) func(*models.AnimeItem) {
	return func(item *models.AnimeItem) {
		item.Sites = sites
	}
}

// WithTranslation adds localized titles for lang
func WithTranslation(lang string, titles ...string) func(*models.AnimeItem) {
	return func(item *models.AnimeItem) {
		if item.TitleTranslate == nil {
			item.TitleTranslate = models.TitleTranslate{}
		}
		item.TitleTranslate[lang] = append(item.TitleTranslate[lang], titles...)
	}
}

// NewConfig builds a backend configuration for 2023 and 2024 with common sites
func NewConfig(overrides ...func(*models.Config)) *models.Config {
	cfg := &models.Config{
		Years: []int{2023, 2024},
		SiteMeta: models.SiteMeta{
			"abema":    {Title: "ABEMA", URLTemplate: "https://abema.tv/video/title/{{id}}", Type: models.SiteTypeOnair, Regions: []string{"JP"}},
			"bangumi":  {Title: "番组计划", URLTemplate: "https://bangumi.tv/subject/{{id}}", Type: models.SiteTypeInfo, Regions: []string{"CN"}},
			"bilibili": {Title: "哔哩哔哩", URLTemplate: "https://www.bilibili.com/bangumi/media/md{{id}}/", Type: models.SiteTypeOnair, Regions: []string{"CN"}},
			"netflix":  {Title: "Netflix", URLTemplate: "https://www.netflix.com/title/{{id}}", Type: models.SiteTypeOnair},
			"tmdb":     {Title: "TMDB", URLTemplate: "https://www.themoviedb.org/tv/{{id}}", Type: models.SiteTypeResource},
		},
	}

	for _, override := range overrides {
		override(cfg)
	}
	return cfg
}

// WithYears sets the selectable years
func WithYears(years ...int) func(*models.Config) {
	return func(cfg *models.Config) {
		cfg.Years = years
	}
}

// WithAttribution adds TMDB attribution logos
func WithAttribution() func(*models.Config) {
	return func(cfg *models.Config) {
		cfg.Attribution = &models.Attribution{TMDB: models.TMDBAttribution{
			LogoSquare:  "https://example.com/tmdb-square.svg",
			LogoLong:    "https://example.com/tmdb-long.svg",
			LogoAltLong: "https://example.com/tmdb-alt-long.svg",
		}}
	}
}

// NewMetadata builds resolved metadata with a cover, score, episodes and genres
func NewMetadata(overrides ...func(*models.UnifiedMetadata)) *models.UnifiedMetadata {
	md := &models.UnifiedMetadata{
		ID:           "anilist:154587",
		Title:        models.UniversalTitle{Romaji: strPtr("Sousou no Frieren"), English: strPtr("Frieren: Beyond Journey's End"), Native: strPtr("葬送のフリーレン")},
		CoverImage:   models.UniversalCoverImage{Large: strPtr("https://img.example.com/large.jpg"), ExtraLarge: strPtr("https://img.example.com/xl.jpg")},
		AverageScore: intPtr(91),
		Episodes:     intPtr(28),
		Genres:       []string{"Adventure", "Drama", "Fantasy"},
		Description:  strPtr("An elf mage outlives her party."),
		Studios:      []string{"Madhouse"},
		Characters:   []models.UniversalCharacter{{Name: "Frieren", VoiceActor: strPtr("Atsumi Tanezaki"), Role: strPtr("MAIN")}},
		Staff:        []models.UniversalStaff{{Name: "Keiichiro Saito", Role: "Director"}},
		EpisodesList: []models.UniversalEpisode{{Number: 1, Title: strPtr("The Journey's End")}},
	}

	for _, override := range overrides {
		override(md)
	}
	return md
}
