package menu

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/example/foodcart/pkg/config"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const MaxImageSize = 5 << 20

var ErrInvalidImage = errors.New("invalid image")

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// ImageStore saves uploaded food images on an afero filesystem and hands out
// public URLs for them.
type ImageStore struct {
	fs     afero.Fs
	dir    string
	prefix string
	newID  func() string
}

func NewImageStore(fs afero.Fs, cfg config.StorageConfig) (*ImageStore, error) {
	if err := fs.MkdirAll(cfg.ImageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}
	return &ImageStore{
		fs:     fs,
		dir:    cfg.ImageDir,
		prefix: strings.TrimRight(cfg.PublicPrefix, "/"),
		newID:  uuid.NewString,
	}, nil
}

// Upload stores the image under a fresh name and returns its URL. Only the
// extension of name is kept.
func (s *ImageStore) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !imageExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported extension %q", ErrInvalidImage, ext)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file := s.newID() + ext
	full := filepath.Join(s.dir, file)
	f, err := s.fs.Create(full)
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxImageSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxImageSize {
		err = fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxImageSize)
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	if err != nil {
		_ = s.fs.Remove(full)
		return "", err
	}
	return s.prefix + "/" + file, nil
}

// Delete removes the image behind a URL returned by Upload. Unknown URLs are
// ignored.
func (s *ImageStore) Delete(url string) error {
	if !strings.HasPrefix(url, s.prefix+"/") {
		return nil
	}
	name := path.Base(url)
	if err := s.fs.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// FileSystem serves stored images over HTTP.
func (s *ImageStore) FileSystem() http.FileSystem {
	return afero.NewHttpFs(s.fs).Dir(s.dir)
}

func (s *ImageStore) Prefix() string {
	return s.prefix
}
