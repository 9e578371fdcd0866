package menu

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/models"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func ptr[T any](v T) *T { return &v }

func newStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.FoodItem{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewGormStore(db)
}

func TestGormStore_crud(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	burger, err := s.Create(ctx, ItemInput{
		Name:      ptr("Burger"),
		Category:  ptr("mains"),
		BasePrice: ptr(decimal.NewFromInt(50)),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, burger.ID)
	assert.True(t, burger.Available)

	_, err = s.Create(ctx, ItemInput{
		Name:      ptr("Milkshake"),
		Category:  ptr("drinks"),
		BasePrice: ptr(decimal.NewFromInt(35)),
		Available: ptr(false),
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, burger.ID)
	require.NoError(t, err)
	assert.Equal(t, "Burger", got.Name)
	assert.True(t, got.BasePrice.Equal(decimal.NewFromInt(50)))

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	available, err := s.List(ctx, ListOptions{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Burger", available[0].Name)

	updated, err := s.Update(ctx, burger.ID, ItemInput{BasePrice: ptr(decimal.NewFromInt(55)), Available: ptr(false)})
	require.NoError(t, err)
	assert.True(t, updated.BasePrice.Equal(decimal.NewFromInt(55)))
	assert.False(t, updated.Available)
	assert.Equal(t, "Burger", updated.Name)

	reloaded, err := s.Get(ctx, burger.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Available)

	require.NoError(t, s.Delete(ctx, burger.ID))
	_, err = s.Get(ctx, burger.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, burger.ID), ErrNotFound)
}

func TestGormStore_validation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, ItemInput{BasePrice: ptr(decimal.NewFromInt(10))})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = s.Create(ctx, ItemInput{Name: ptr("Free lunch"), BasePrice: ptr(decimal.Zero)})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = s.Update(ctx, "missing", ItemInput{Name: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func newImages(t *testing.T) (*ImageStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := NewImageStore(fs, config.StorageConfig{ImageDir: "data/images", PublicPrefix: "/images/"})
	require.NoError(t, err)
	s.newID = func() string { return "img-1" }
	return s, fs
}

func TestImageStore_upload(t *testing.T) {
	s, fs := newImages(t)

	url, err := s.Upload(context.Background(), "Burger.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/images/img-1.png", url)

	data, err := afero.ReadFile(fs, "data/images/img-1.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	f, err := s.FileSystem().Open("/img-1.png")
	require.NoError(t, err)
	served, err := io.ReadAll(f)
	require.NoError(t, err)
	f.Close()
	assert.Equal(t, "png-bytes", string(served))

	require.NoError(t, s.Delete(url))
	exists, err := afero.Exists(fs, "data/images/img-1.png")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, s.Delete(url))
}

func TestImageStore_rejects(t *testing.T) {
	s, fs := newImages(t)
	ctx := context.Background()

	_, err := s.Upload(ctx, "notes.txt", strings.NewReader("hello"))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = s.Upload(ctx, "empty.jpg", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = s.Upload(ctx, "huge.jpg", bytes.NewReader(make([]byte, MaxImageSize+1)))
	assert.ErrorIs(t, err, ErrInvalidImage)

	exists, err := afero.Exists(fs, "data/images/img-1.jpg")
	require.NoError(t, err)
	assert.False(t, exists)
}
