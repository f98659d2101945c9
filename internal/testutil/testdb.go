// internal/testutil/testdb.go
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/dalemusser/mentorhub/internal/app/store/schema"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// envTestMongoURI selects the Mongo instance integration tests run against.
// Tests that need a database skip when it is unset, so the pure-logic suite
// runs anywhere.
const envTestMongoURI = "MENTORHUB_TEST_MONGO_URI"

// SetupTestDB connects to the test Mongo instance and hands back a database
// unique to this test. The database is dropped on cleanup.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	uri := os.Getenv(envTestMongoURI)
	if uri == "" {
		t.Skipf("set %s to run database-backed tests", envTestMongoURI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connecting to test mongo: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("pinging test mongo: %v", err)
	}

	db := client.Database(fmt.Sprintf("mentorhub_test_%d", time.Now().UnixNano()))
	if err := schema.Ensure(ctx, db); err != nil {
		t.Fatalf("creating test indexes: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("dropping test database: %v", err)
		}
		_ = client.Disconnect(ctx)
	})
	return db
}

// TestContext returns a context with the standard test deadline.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
