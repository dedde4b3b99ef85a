package testhelpers

import (
	"testing"

	"github.com/harishm17/study-buddy-sub001/internal/models"
)

func TestSetupTestDBMigratesSchema(t *testing.T) {
	db := SetupTestDB(t)

	for _, m := range models.AllModels() {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("expected table for %T", m)
		}
	}
}

func TestSetupTestDBIsolatedPerTest(t *testing.T) {
	db := SetupTestDB(t)
	if err := db.Create(&models.User{Email: "a@b.com", Name: "A", PasswordHash: "x"}).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	t.Run("subtest", func(t *testing.T) {
		other := SetupTestDB(t)
		var count int64
		other.Model(&models.User{}).Count(&count)
		if count != 0 {
			t.Fatalf("expected isolated database, found %d users", count)
		}
	})
}
