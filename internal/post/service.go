package post

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/feedline/service/internal/metrics"
	"github.com/feedline/service/internal/storage"
)

// OriginTag marks media uploaded through this service.
const OriginTag = "backend-upload"

// ErrUploadFailed is returned when the media store did not produce a usable URL.
var ErrUploadFailed = errors.New("upload failed")

// Store is the persistence the post service depends on.
type Store interface {
	Create(ctx context.Context, p *Post) (*Post, error)
	List(ctx context.Context) ([]*Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UploadInput is a single media upload as received from a client.
type UploadInput struct {
	File        io.Reader
	FileName    string
	ContentType string
	Caption     string
}

// Service contains business logic for posts.
type Service struct {
	repo     Store
	media    storage.MediaStore
	stageDir string
	metrics  metrics.Recorder
	log      zerolog.Logger
}

// NewService creates a new post Service. Uploads are staged under stageDir
// (os.TempDir() when empty) before being handed to the media store.
func NewService(repo Store, media storage.MediaStore, stageDir string, rec metrics.Recorder, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		media:    media,
		stageDir: stageDir,
		metrics:  rec,
		log:      log.With().Str("component", "post").Logger(),
	}
}

// Upload stores the file in the media store and records a post for it.
// The post row is written only after the store returned a URL. The staged
// copy of the file is removed on every return path.
func (s *Service) Upload(ctx context.Context, in UploadInput) (p *Post, err error) {
	defer func() { s.metrics.IncrementPostOperations("upload", err == nil) }()

	staged, err := s.stage(in.File, in.FileName)
	if err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}
	defer s.discard(staged)

	res, err := s.send(ctx, staged, in)
	if err != nil {
		return nil, err
	}
	if res == nil || res.URL == "" {
		s.log.Warn().Str("file_name", in.FileName).Str("provider", s.media.Provider()).Msg("media store returned no url")
		return nil, ErrUploadFailed
	}

	fileName := res.Name
	if fileName == "" {
		fileName = in.FileName
	}

	created, err := s.repo.Create(ctx, &Post{
		Caption:  in.Caption,
		URL:      res.URL,
		FileType: ClassifyFileType(in.ContentType),
		FileName: fileName,
	})
	if err != nil {
		s.log.Error().Err(err).Str("url", res.URL).Msg("post insert failed after media upload")
		return nil, fmt.Errorf("save post: %w", err)
	}

	s.log.Info().Str("post_id", created.ID).Str("file_type", created.FileType).Msg("post uploaded")
	return created, nil
}

// Feed returns all posts, newest first.
func (s *Service) Feed(ctx context.Context) ([]*Post, error) {
	posts, err := s.repo.List(ctx)
	s.metrics.IncrementPostOperations("feed", err == nil)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	return posts, nil
}

// Delete removes a post. The media object stays in the store.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	s.metrics.IncrementPostOperations("delete", err == nil)
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	s.log.Info().Str("post_id", id.String()).Msg("post deleted")
	return nil
}

// ClassifyFileType maps a declared MIME type to a post file type.
// Only a case-sensitive "video/" prefix yields a video.
func ClassifyFileType(contentType string) string {
	if strings.HasPrefix(contentType, "video/") {
		return FileTypeVideo
	}
	return FileTypeImage
}

// stage copies src to a uniquely named file that keeps the extension of
// fileName. A partially written file is removed before returning an error.
func (s *Service) stage(src io.Reader, fileName string) (path string, err error) {
	f, err := os.CreateTemp(s.stageDir, "upload-*"+filepath.Ext(fileName))
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			s.discard(f.Name())
		}
	}()

	if _, err = io.Copy(f, src); err != nil {
		return "", err
	}
	return f.Name(), nil
}

func (s *Service) send(ctx context.Context, staged string, in UploadInput) (*storage.UploadResult, error) {
	f, err := os.Open(staged)
	if err != nil {
		return nil, fmt.Errorf("open staged upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat staged upload: %w", err)
	}

	start := time.Now()
	res, err := s.media.Upload(ctx, f, storage.UploadOptions{
		FileName:    in.FileName,
		ContentType: in.ContentType,
		Size:        info.Size(),
		UniqueName:  true,
		Tags:        []string{OriginTag},
	})
	s.metrics.ObserveMediaUpload(s.media.Provider(), err == nil && res != nil && res.URL != "", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("media upload: %w", err)
	}
	return res, nil
}

func (s *Service) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to remove staged upload")
	}
}
