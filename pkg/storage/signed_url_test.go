package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("export-1", "agenda/acting-1.csv")
	require.NoError(t, err)

	id, path, parsedExpiry, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "export-1", id)
	assert.Equal(t, "agenda/acting-1.csv", path)
	assert.WithinDuration(t, expiresAt, parsedExpiry, time.Second)

	_, _, _, err = NewSignedURLSigner("other", time.Hour).Parse(token, false)
	assert.Error(t, err)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", -time.Minute)
	signer.ttl = -time.Minute
	token, _, err := signer.Generate("export-1", "agenda/file.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	id, path, _, err := signer.Parse(token, true)
	require.NoError(t, err)
	assert.Equal(t, "export-1", id)
	assert.Equal(t, "agenda/file.pdf", path)
}

func TestLocalStorageRoundTripAndTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("agenda/a.csv", []byte("day\n"))
	require.NoError(t, err)
	f, err := store.Open(rel)
	require.NoError(t, err)
	_ = f.Close()

	_, err = store.Save("../escape.csv", []byte("x"))
	assert.Error(t, err)

	require.NoError(t, store.Delete(rel))
	_, err = os.Stat(rel)
	assert.True(t, os.IsNotExist(err))
}
