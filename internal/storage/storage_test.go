package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["file"][0]
}

func TestSaveWritesFileAndReturnsURL(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root, "https://portal.example.org/")

	url, err := store.Save(BucketEventImages, "", fileHeader(t, "Flyer.PNG", []byte("png-bytes")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://portal.example.org/storage/event-images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	rel := strings.TrimPrefix(url, "https://portal.example.org/storage/")
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestCheckRejects(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "")

	assert.ErrorIs(t, store.Check("secrets", fileHeader(t, "a.png", []byte("x"))), ErrUnknownBucket)
	assert.ErrorIs(t, store.Check(BucketEventImages, fileHeader(t, "a.exe", []byte("x"))), ErrExtensionBlocked)
	assert.NoError(t, store.Check(BucketCivicFiles, fileHeader(t, "minutes.pdf", []byte("x"))))
}

func TestRemoveDeletesOnlyOwnObjects(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root, "https://portal.example.org")

	url, err := store.Save(BucketCivicFiles, "org-1/gallery", fileHeader(t, "park.jpg", []byte("jpg")))
	require.NoError(t, err)
	rel := strings.TrimPrefix(url, "https://portal.example.org/storage/")

	require.NoError(t, store.Remove(url))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Remove(url))
	assert.NoError(t, store.Remove("https://elsewhere.example.org/storage/civic-files/x.jpg"))
	assert.NoError(t, store.Remove("https://portal.example.org/storage/../outside.txt"))
}
