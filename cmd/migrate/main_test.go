package main

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/dvloznov/smart-finance/migrations"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_transactions.sql", true, "0001", "create_transactions"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			m := migrationPattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.version, m[1])
			assert.Equal(t, tt.name, m[2])
		})
	}
}

func TestReadMigrations(t *testing.T) {
	raw := "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (id INT64);"
	fsys := fstest.MapFS{
		"0002_second.sql": {Data: []byte("SELECT 2;")},
		"0001_first.sql":  {Data: []byte(raw)},
		"README.md":       {Data: []byte("notes")},
	}

	got, err := readMigrations(fsys, "proj", "ds", zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "first", got[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.ds.t` (id INT64);", got[0].SQL)
	assert.Equal(t, fmt.Sprintf("%x", sha256.Sum256([]byte(raw))), got[0].Checksum)
	assert.Equal(t, 2, got[1].Version)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1;")},
		"0001_b.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := readMigrations(fsys, "p", "d", zerolog.Nop())
	assert.Error(t, err)
}

func TestReadMigrations_Embedded(t *testing.T) {
	sub, err := fs.Sub(migrations.BigQuery, "bigquery")
	require.NoError(t, err)

	got, err := readMigrations(sub, "proj", "finance", zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "create_transactions", got[0].Name)
	assert.Contains(t, got[0].SQL, "`proj.finance.transactions`")
}

func TestPending(t *testing.T) {
	all := []Migration{
		{Version: 1, Name: "a", Checksum: "c1"},
		{Version: 2, Name: "b", Checksum: "c2"},
		{Version: 3, Name: "c", Checksum: "c3"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "c1"},
		{Version: 2, Checksum: "old"},
	}

	todo, drifted := pending(all, applied)
	require.Len(t, todo, 1)
	assert.Equal(t, 3, todo[0].Version)
	require.Len(t, drifted, 1)
	assert.Equal(t, 2, drifted[0].Version)
}
