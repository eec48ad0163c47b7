package post

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/feedline/service/internal/metrics"
	"github.com/feedline/service/internal/storage"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, p *Post) (*Post, error) {
	args := m.Called(ctx, p)
	created, _ := args.Get(0).(*Post)
	return created, args.Error(1)
}

func (m *mockStore) List(ctx context.Context) ([]*Post, error) {
	args := m.Called(ctx)
	posts, _ := args.Get(0).([]*Post)
	return posts, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// memoryStore keeps posts in a slice; created_at strictly increases.
type memoryStore struct {
	mu    sync.Mutex
	posts []*Post
	clock time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memoryStore) Create(_ context.Context, p *Post) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	created := *p
	created.ID = uuid.NewString()
	created.CreatedAt = m.clock
	m.posts = append(m.posts, &created)
	out := created
	return &out, nil
}

func (m *memoryStore) List(context.Context) ([]*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Post, 0, len(m.posts))
	for _, p := range m.posts {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.posts {
		if p.ID == id.String() {
			m.posts = append(m.posts[:i], m.posts[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posts)
}

// fakeMedia records what it was handed and answers with a canned result.
type fakeMedia struct {
	result *storage.UploadResult
	err    error

	stagedPath   string
	stagedExists bool
	body         string
	opts         storage.UploadOptions
}

func (f *fakeMedia) Provider() string { return "fake" }

func (f *fakeMedia) Upload(_ context.Context, r io.Reader, opts storage.UploadOptions) (*storage.UploadResult, error) {
	if file, ok := r.(*os.File); ok {
		f.stagedPath = file.Name()
		_, statErr := os.Stat(file.Name())
		f.stagedExists = statErr == nil
	}
	b, _ := io.ReadAll(r)
	f.body = string(b)
	f.opts = opts
	return f.result, f.err
}

func newTestService(t *testing.T, repo Store, media storage.MediaStore) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	return NewService(repo, media, dir, metrics.Nop{}, zerolog.Nop()), dir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged upload left behind")
}

func TestClassifyFileType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"video/mp4", FileTypeVideo},
		{"video/quicktime", FileTypeVideo},
		{"image/png", FileTypeImage},
		{"", FileTypeImage},
		{"application/octet-stream", FileTypeImage},
		{"Video/mp4", FileTypeImage},
		{"VIDEO/MP4", FileTypeImage},
		{"videos", FileTypeImage},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFileType(tt.contentType))
		})
	}
}

func TestService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		repo := new(mockStore)
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/x.png", Name: "x.png"}}
		svc, dir := newTestService(t, repo, media)

		created := &Post{ID: uuid.NewString(), Caption: "hi", URL: "https://cdn.example/x.png", FileType: FileTypeImage, FileName: "x.png", CreatedAt: time.Now()}
		repo.On("Create", mock.Anything, &Post{
			Caption:  "hi",
			URL:      "https://cdn.example/x.png",
			FileType: FileTypeImage,
			FileName: "x.png",
		}).Return(created, nil)

		got, err := svc.Upload(ctx, UploadInput{
			File:        strings.NewReader("0123456789"),
			FileName:    "a.png",
			ContentType: "image/png",
			Caption:     "hi",
		})

		require.NoError(t, err)
		assert.Equal(t, created, got)
		assert.Equal(t, "0123456789", media.body)
		assert.True(t, media.stagedExists)
		assert.True(t, strings.HasSuffix(media.stagedPath, ".png"))
		assert.Equal(t, storage.UploadOptions{
			FileName:    "a.png",
			ContentType: "image/png",
			Size:        10,
			UniqueName:  true,
			Tags:        []string{OriginTag},
		}, media.opts)
		assertDirEmpty(t, dir)
		repo.AssertExpectations(t)
	})

	t.Run("VideoContentType", func(t *testing.T) {
		repo := newMemoryStore()
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/v.mp4", Name: "v.mp4"}}
		svc, dir := newTestService(t, repo, media)

		got, err := svc.Upload(ctx, UploadInput{File: strings.NewReader("frames"), FileName: "clip.mp4", ContentType: "video/mp4"})

		require.NoError(t, err)
		assert.Equal(t, FileTypeVideo, got.FileType)
		assert.Empty(t, got.Caption)
		assertDirEmpty(t, dir)
	})

	t.Run("FallsBackToOriginalFileName", func(t *testing.T) {
		repo := newMemoryStore()
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/abc"}}
		svc, _ := newTestService(t, repo, media)

		got, err := svc.Upload(ctx, UploadInput{File: strings.NewReader("x"), FileName: "holiday.jpg", ContentType: "image/jpeg"})

		require.NoError(t, err)
		assert.Equal(t, "holiday.jpg", got.FileName)
	})

	t.Run("NoURLCreatesNoRow", func(t *testing.T) {
		repo := newMemoryStore()
		media := &fakeMedia{result: &storage.UploadResult{Name: "x.png"}}
		svc, dir := newTestService(t, repo, media)

		got, err := svc.Upload(ctx, UploadInput{File: strings.NewReader("x"), FileName: "a.png", ContentType: "image/png"})

		assert.Nil(t, got)
		assert.Same(t, ErrUploadFailed, err)
		assert.Zero(t, repo.count())
		assertDirEmpty(t, dir)
	})

	t.Run("NilResultIsUploadFailure", func(t *testing.T) {
		repo := new(mockStore)
		svc, dir := newTestService(t, repo, &fakeMedia{})

		_, err := svc.Upload(ctx, UploadInput{File: strings.NewReader("x"), FileName: "a.png"})

		assert.ErrorIs(t, err, ErrUploadFailed)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assertDirEmpty(t, dir)
	})

	t.Run("StoreError", func(t *testing.T) {
		repo := new(mockStore)
		media := &fakeMedia{err: errors.New("connection reset by peer")}
		svc, dir := newTestService(t, repo, media)

		got, err := svc.Upload(ctx, UploadInput{File: strings.NewReader("x"), FileName: "a.png", ContentType: "image/png"})

		assert.Nil(t, got)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUploadFailed)
		assert.Contains(t, err.Error(), "connection reset by peer")
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		assertDirEmpty(t, dir)
	})

	t.Run("PersistenceError", func(t *testing.T) {
		repo := new(mockStore)
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/x.png", Name: "x.png"}}
		svc, dir := newTestService(t, repo, media)
		repo.On("Create", mock.Anything, mock.AnythingOfType("*post.Post")).Return(nil, errors.New("commit: conn closed"))

		got, err := svc.Upload(ctx, UploadInput{File: strings.NewReader("x"), FileName: "a.png", ContentType: "image/png"})

		assert.Nil(t, got)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit: conn closed")
		assertDirEmpty(t, dir)
		repo.AssertExpectations(t)
	})

	t.Run("StagingReadError", func(t *testing.T) {
		repo := new(mockStore)
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/x.png"}}
		svc, dir := newTestService(t, repo, media)

		_, err := svc.Upload(ctx, UploadInput{File: io.MultiReader(strings.NewReader("part"), errReader{}), FileName: "a.png"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage upload")
		assert.Empty(t, media.stagedPath, "store must not be called")
		assertDirEmpty(t, dir)
	})

	t.Run("StagingDirMissing", func(t *testing.T) {
		repo := new(mockStore)
		svc := NewService(repo, &fakeMedia{}, "/nonexistent/feedline-stage", metrics.Nop{}, zerolog.Nop())

		_, err := svc.Upload(ctx, UploadInput{File: strings.NewReader("x"), FileName: "a.png"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage upload")
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestService_Feed(t *testing.T) {
	t.Run("NewestFirst", func(t *testing.T) {
		repo := newMemoryStore()
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/x"}}
		svc, _ := newTestService(t, repo, media)

		var ids []string
		for _, caption := range []string{"first", "second", "third"} {
			p, err := svc.Upload(context.Background(), UploadInput{File: strings.NewReader(caption), FileName: caption + ".png", Caption: caption})
			require.NoError(t, err)
			ids = append(ids, p.ID)
		}

		feed, err := svc.Feed(context.Background())

		require.NoError(t, err)
		require.Len(t, feed, 3)
		assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{feed[0].ID, feed[1].ID, feed[2].ID})
		for i := 1; i < len(feed); i++ {
			assert.True(t, feed[i-1].CreatedAt.After(feed[i].CreatedAt))
		}
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := new(mockStore)
		svc, _ := newTestService(t, repo, &fakeMedia{})
		repo.On("List", mock.Anything).Return(nil, errors.New("db down"))

		feed, err := svc.Feed(context.Background())

		assert.Nil(t, feed)
		assert.ErrorContains(t, err, "db down")
	})
}

func TestService_Delete(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		repo := newMemoryStore()
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/x.png", Name: "x.png"}}
		svc, _ := newTestService(t, repo, media)

		p, err := svc.Upload(context.Background(), UploadInput{File: strings.NewReader("x"), FileName: "a.png", Caption: "hi"})
		require.NoError(t, err)

		feed, err := svc.Feed(context.Background())
		require.NoError(t, err)
		require.Len(t, feed, 1)
		assert.Equal(t, p.ID, feed[0].ID)

		require.NoError(t, svc.Delete(context.Background(), uuid.MustParse(p.ID)))

		feed, err = svc.Feed(context.Background())
		require.NoError(t, err)
		assert.Empty(t, feed)
	})

	t.Run("NotFoundLeavesTableUnchanged", func(t *testing.T) {
		repo := newMemoryStore()
		media := &fakeMedia{result: &storage.UploadResult{URL: "https://cdn.example/x.png"}}
		svc, _ := newTestService(t, repo, media)
		_, err := svc.Upload(context.Background(), UploadInput{File: strings.NewReader("x"), FileName: "a.png"})
		require.NoError(t, err)

		err = svc.Delete(context.Background(), uuid.New())

		assert.Same(t, ErrNotFound, err)
		assert.Equal(t, 1, repo.count())
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := new(mockStore)
		svc, _ := newTestService(t, repo, &fakeMedia{})
		id := uuid.New()
		repo.On("Delete", mock.Anything, id).Return(errors.New("db down"))

		err := svc.Delete(context.Background(), id)

		assert.ErrorContains(t, err, "db down")
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}
