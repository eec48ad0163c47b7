package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	args := m.Called(ctx, file, params)
	res, _ := args.Get(0).(*uploader.UploadResult)
	return res, args.Error(1)
}

func TestUniqueName(t *testing.T) {
	a := uniqueName("cat.png")
	b := uniqueName("cat.png")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "cat_"))
	assert.Equal(t, ".png", path.Ext(a))
	assert.True(t, strings.HasPrefix(uniqueName(""), "file_"))
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "clip.mp4", objectKey(UploadOptions{FileName: "clip.mp4"}))
	assert.Equal(t, "clip.mp4", objectKey(UploadOptions{FileName: `C:\videos\clip.mp4`}))

	key := objectKey(UploadOptions{FileName: "clip.mp4", UniqueName: true})
	assert.NotEqual(t, "clip.mp4", key)
	assert.Equal(t, ".mp4", path.Ext(key))
}

func TestUserTags(t *testing.T) {
	assert.Nil(t, userTags(nil))
	assert.Equal(t, map[string]string{"backend-upload": "true"}, userTags([]string{"backend-upload"}))
}

func TestPublicReadPolicy(t *testing.T) {
	policy := publicReadPolicy("posts")
	assert.Contains(t, policy, `"arn:aws:s3:::posts/*"`)
	assert.Contains(t, policy, `"s3:GetObject"`)
}

func TestStoredName(t *testing.T) {
	assert.Equal(t, "cat_ab12.png", storedName("feedline/posts/cat_ab12", "png"))
	assert.Equal(t, "cat_ab12.png", storedName("feedline/posts/cat_ab12.png", "png"))
	assert.Equal(t, "raw", storedName("raw", ""))
	assert.Empty(t, storedName("", "png"))
}

func TestCloudinaryStorage_Upload(t *testing.T) {
	opts := UploadOptions{
		FileName:    "a.png",
		ContentType: "image/png",
		Size:        10,
		UniqueName:  true,
		Tags:        []string{"backend-upload"},
	}
	reader := strings.NewReader("0123456789")

	t.Run("Success", func(t *testing.T) {
		up := new(mockUploader)
		store := &CloudinaryStorage{upload: up, folder: "feedline/posts"}

		up.On("Upload", mock.Anything, reader, mock.MatchedBy(func(p uploader.UploadParams) bool {
			return p.Folder == "feedline/posts" &&
				p.FilenameOverride == "a" &&
				*p.UseFilename &&
				*p.UniqueFilename &&
				p.ResourceType == "auto" &&
				assert.ObjectsAreEqual(api.CldAPIArray{"backend-upload"}, p.Tags)
		})).Return(&uploader.UploadResult{
			SecureURL: "https://cdn.example/x.png",
			PublicID:  "feedline/posts/x",
			Format:    "png",
		}, nil)

		res, err := store.Upload(context.Background(), reader, opts)

		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example/x.png", res.URL)
		assert.Equal(t, "x.png", res.Name)
		up.AssertExpectations(t)
	})

	t.Run("TransportError", func(t *testing.T) {
		up := new(mockUploader)
		store := &CloudinaryStorage{upload: up}
		up.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dial tcp: timeout"))

		res, err := store.Upload(context.Background(), reader, opts)

		assert.Nil(t, res)
		assert.ErrorContains(t, err, "dial tcp: timeout")
	})

	t.Run("APIError", func(t *testing.T) {
		up := new(mockUploader)
		store := &CloudinaryStorage{upload: up}
		up.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(&uploader.UploadResult{
			Error: api.ErrorResp{Message: "Invalid image file"},
		}, nil)

		res, err := store.Upload(context.Background(), reader, opts)

		assert.Nil(t, res)
		assert.ErrorContains(t, err, "Invalid image file")
	})

	t.Run("NoURL", func(t *testing.T) {
		up := new(mockUploader)
		store := &CloudinaryStorage{upload: up}
		up.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(&uploader.UploadResult{}, nil)

		res, err := store.Upload(context.Background(), reader, opts)

		require.NoError(t, err)
		assert.Empty(t, res.URL)
	})
}
