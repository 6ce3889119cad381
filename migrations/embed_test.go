package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	raw, err := fs.ReadFile(FS, files[0])
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.HasPrefix(body, "-- +goose Up"))
	assert.Contains(t, body, "-- +goose Down")
	assert.Contains(t, body, "CREATE UNIQUE INDEX users_email_lower_idx ON users (lower(email));")
}

func TestGalleryMigrationFollowsInit(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{"00001_init.sql", "00002_gallery.sql"}, files)

	raw, err := fs.ReadFile(FS, "00002_gallery.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "CREATE TABLE gallery_items")
	assert.Contains(t, string(raw), "DROP TABLE gallery_items;")
}
