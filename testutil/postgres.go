package testutil

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/gradebook/storage/database"
)

// DatabaseURLEnv names the variable holding the URL of a disposable postgres database.
const DatabaseURLEnv = "GRADEBOOK_TEST_DATABASE_URL"

const truncateAll = "TRUNCATE result_history, class_statistics, student_results, users, schools CASCADE"

// PrepareDB opens and migrates the test database, and empties it before and after the test.
// The test is skipped when GRADEBOOK_TEST_DATABASE_URL is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv(DatabaseURLEnv)
	if url == "" {
		t.Skipf("%s is not set", DatabaseURLEnv)
	}

	db, err := database.OpenURL(url)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("PrepareDB() failed to migrate: %v", err)
	}
	if _, err = db.Exec(truncateAll); err != nil {
		_ = db.Close()
		t.Fatalf("PrepareDB() failed to truncate: %v", err)
	}

	t.Cleanup(func() {
		if _, err := db.Exec(truncateAll); err != nil {
			t.Errorf("PrepareDB() cleanup failed: %v", err)
		}
		_ = db.Close()
	})
	return db
}
