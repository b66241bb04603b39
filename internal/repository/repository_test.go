package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/foxzi/ofertabot/internal/db"
	"github.com/foxzi/ofertabot/internal/models"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { database.Close() })
	return database.DB
}

func createTestProduct(t *testing.T, repo *ProductRepository, userID, title string, price float64, active bool) *models.Product {
	t.Helper()

	p := &models.Product{
		UserID:        userID,
		Title:         title,
		Price:         price,
		AffiliateLink: "https://s.shopee.com.br/" + title,
		Platform:      models.PlatformShopee,
		Active:        active,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("failed to create product: %v", err)
	}
	return p
}
