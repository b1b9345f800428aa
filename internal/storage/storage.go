package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	BucketEventImages = "event-images"
	BucketCivicFiles  = "civic-files"

	MaxFileSize = 5 * 1024 * 1024
)

var (
	ErrUnknownBucket    = errors.New("unknown storage bucket")
	ErrFileTooLarge     = fmt.Errorf("file exceeds the %d MB limit", MaxFileSize/(1024*1024))
	ErrExtensionBlocked = errors.New("file type not allowed")
)

var bucketExtensions = map[string]map[string]bool{
	BucketEventImages: {".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true},
	BucketCivicFiles:  {".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".pdf": true, ".doc": true, ".docx": true},
}

// LocalStore keeps bucket objects on disk under root and addresses them by public URL.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, publicBaseURL string) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *LocalStore) Root() string { return s.root }

// Check validates a file against the bucket rules without writing anything.
func (s *LocalStore) Check(bucket string, fh *multipart.FileHeader) error {
	allowed, ok := bucketExtensions[bucket]
	if !ok {
		return ErrUnknownBucket
	}
	if fh.Size > MaxFileSize {
		return fmt.Errorf("%s: %w", fh.Filename, ErrFileTooLarge)
	}
	if !allowed[strings.ToLower(filepath.Ext(fh.Filename))] {
		return fmt.Errorf("%s: %w", fh.Filename, ErrExtensionBlocked)
	}
	return nil
}

// Save writes the upload under bucket/prefix and returns its public URL.
func (s *LocalStore) Save(bucket, prefix string, fh *multipart.FileHeader) (string, error) {
	if err := s.Check(bucket, fh); err != nil {
		return "", err
	}

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	rel := filepath.Join(bucket, prefix, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	dst := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(src, MaxFileSize+1)); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	return s.baseURL + "/storage/" + filepath.ToSlash(rel), nil
}

// Remove deletes an object previously returned by Save. URLs outside this store are ignored.
func (s *LocalStore) Remove(url string) error {
	rel, ok := strings.CutPrefix(url, s.baseURL+"/storage/")
	if !ok {
		return nil
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.root, clean)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
