package database

import (
	"context"
	"testing"

	"inspiro/internal/config"
	"inspiro/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = configurePool(db, &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConnectWithOptions_SQLiteAutoMigrates(t *testing.T) {
	cfg := &config.Config{
		DBDriver:                 "sqlite",
		DBDSN:                    "file::memory:",
		DBMaxOpenConns:           1,
		DBConnMaxLifetimeMinutes: 5,
		Env:                      "test",
	}

	db, err := ConnectWithOptions(cfg, ConnectOptions{ApplySchema: true})
	require.NoError(t, err)

	for _, m := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
}

func TestSchemaPolicy_Postgres(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	pg := db.Session(&gorm.Session{})
	pg.Dialector = fakeDialector{pg.Dialector}

	tests := []struct {
		name    string
		mode    string
		env     string
		runSQL  bool
		runAuto bool
		wantErr bool
	}{
		{"hybrid in development", "", "development", true, true, false},
		{"hybrid in production", "hybrid", "production", true, false, false},
		{"sql only", "sql", "development", true, false, false},
		{"auto in production refused", "auto", "production", false, false, true},
		{"unknown mode", "yolo", "development", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(pg, &config.Config{DBSchemaMode: tt.mode, Env: tt.env})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.runSQL, runSQL)
			assert.Equal(t, tt.runAuto, runAuto)
		})
	}
}

// fakeDialector reports itself as postgres so the policy branch can be tested
// without a server.
type fakeDialector struct {
	gorm.Dialector
}

func (fakeDialector) Name() string { return "postgres" }

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "init", all[0].Name)
	assert.Contains(t, all[0].UpScript, "CREATE TABLE IF NOT EXISTS liked_posts")
	assert.Contains(t, all[0].DownScript, "DROP TABLE IF EXISTS posts")
	assert.Nil(t, GetMigrationByVersion(999))

	assert.NoError(t, validateAppliedVersions([]int{1}, all))
	assert.Error(t, validateAppliedVersions([]int{1, 42}, all))
}

func TestPersistentModels_IncludesEngagementEdges(t *testing.T) {
	var liked, saved bool
	for _, m := range PersistentModels() {
		switch m.(type) {
		case *models.LikedPost:
			liked = true
		case *models.SavedPost:
			saved = true
		}
	}
	assert.True(t, liked)
	assert.True(t, saved)
}
