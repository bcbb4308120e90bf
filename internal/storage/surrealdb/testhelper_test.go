package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/stacker/internal/common"
	tcommon "github.com/bobmcallan/stacker/tests/common"
	surreal "github.com/surrealdb/surrealdb.go"
)

// testDB starts the shared SurrealDB container and returns a connected *surreal.DB
// using a unique database name per test to ensure isolation.
func testDB(t *testing.T) *surreal.DB {
	t.Helper()

	sc := tcommon.StartSurrealDB(t)

	// SurrealDB rejects "/" in database names, which subtests produce.
	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := common.StorageConfig{
		Address:   sc.Address(),
		Namespace: "stacker_test",
		Database:  fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000),
		Username:  "root",
		Password:  "root",
	}

	db, err := Connect(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("connect to SurrealDB: %v", err)
	}

	t.Cleanup(func() {
		db.Close(context.Background())
	})

	return db
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
