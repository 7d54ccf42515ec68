package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_EmbeddedSet(t *testing.T) {
	ms, err := loadMigrations(migrationFS)
	require.NoError(t, err)
	require.NotEmpty(t, ms)
	assert.Equal(t, 1, ms[0].version)
	assert.Contains(t, ms[0].sql, "CREATE TABLE processed_events")
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0010_late.sql":  {Data: []byte("SELECT 10;")},
		"migrations/0002_mid.sql":   {Data: []byte("SELECT 2;")},
		"migrations/0001_first.sql": {Data: []byte("SELECT 1;")},
		"migrations/README.md":      {Data: []byte("ignored")},
	}
	ms, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{ms[0].version, ms[1].version, ms[2].version})
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"no prefix": {"migrations/init.sql": {Data: []byte("SELECT 1;")}},
		"non-numeric": {"migrations/abc_init.sql": {Data: []byte("SELECT 1;")}},
		"duplicate": {
			"migrations/0001_a.sql": {Data: []byte("SELECT 1;")},
			"migrations/0001_b.sql": {Data: []byte("SELECT 1;")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadMigrations(fsys)
			assert.Error(t, err)
		})
	}
}
