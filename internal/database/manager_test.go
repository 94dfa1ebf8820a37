package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&Config{
		Type:     "sqlite",
		FilePath: filepath.Join(t.TempDir(), "nested", "test.db"),
	})
	require.False(t, m.IsInitialized())

	require.NoError(t, m.Initialize(ctx))
	require.NoError(t, m.Initialize(ctx), "重复初始化应直接返回")
	require.True(t, m.IsInitialized())
	require.NoError(t, m.Migrate(&testRecord{}))

	db := m.GetDatabase()
	require.NoError(t, db.Create(ctx, &testRecord{Name: "b"}))
	require.NoError(t, db.Create(ctx, &testRecord{Name: "a"}))

	var records []testRecord
	require.NoError(t, db.FindAllWithOrder(ctx, nil, &records, "name"))
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Name)

	require.NoError(t, m.Close())
	assert.False(t, m.IsInitialized())
	assert.Error(t, m.Migrate(&testRecord{}))
}

func TestTransactionRollback(t *testing.T) {
	ctx := context.Background()
	m := NewManager(&Config{FilePath: filepath.Join(t.TempDir(), "tx.db")})
	require.NoError(t, m.Initialize(ctx))
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.Migrate(&testRecord{}))

	db := m.GetDatabase()
	require.NoError(t, db.Create(ctx, &testRecord{Name: "keep"}))

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteAll(ctx, &testRecord{}))
	require.NoError(t, tx.CreateInBatches(ctx, []testRecord{{Name: "x"}, {Name: "y"}}, 10))
	require.NoError(t, tx.Rollback())

	n, err := db.Count(ctx, nil, &testRecord{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFactoryUnsupportedType(t *testing.T) {
	_, err := GetFactory().CreateDatabase(&Config{Type: "oracle"})
	assert.Error(t, err)
	assert.Equal(t, []string{"sqlite"}, GetFactory().SupportedTypes())
}

func TestNotConnected(t *testing.T) {
	db, err := NewSQLiteDatabase(&Config{FilePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.ErrorIs(t, db.Ping(context.Background()), ErrNotConnected)
	_, err = db.Begin(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}
