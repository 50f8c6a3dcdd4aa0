package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozzus/pm-tracker/internal/storage"
	"ozzus/pm-tracker/internal/storage/local"
)

func TestNames(t *testing.T) {
	now := time.UnixMilli(1714550400123)

	assert.Equal(t, "pm-photos/1714550400123-foto_valvula.jpg", storage.PhotoName("foto válvula.jpg", now))
	assert.Equal(t, "pm-photos/1714550400123-photo", storage.PhotoName("  ", now))
	assert.Equal(t, "pm-photos/1714550400123-x.png", storage.PhotoName(`C:\Users\me\x.png`, now))
	assert.Equal(t, "pm-files/1714550400123-PM_100.pdf", storage.PMFileName("PM 100.pdf", now))
	assert.Equal(t, "pm-reports/exec-1/EXEC_A.pdf", storage.ReportName("exec-1", "EXEC_A.pdf"))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := local.New(dir, "http://localhost:8080/files/")
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	ref, err := s.Put(ctx, "pm-photos/1-a b.jpg", "image/jpeg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/pm-photos/1-a%20b.jpg", ref)
	assert.True(t, s.Owns(ref))
	assert.False(t, s.Owns("https://elsewhere/pm-photos/1-a.jpg"))

	onDisk, err := os.ReadFile(filepath.Join(dir, "pm-photos", "1-a b.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(onDisk))

	data, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	_, err = s.Get(ctx, "http://localhost:8080/files/pm-photos/missing.jpg")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	t.Run("names cannot escape the root", func(t *testing.T) {
		ref, err := s.Put(ctx, "../../etc/evil", "text/plain", []byte("x"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(ref, "http://localhost:8080/files/"))
		_, statErr := os.Stat(filepath.Join(dir, "etc", "evil"))
		assert.NoError(t, statErr)
	})
}
