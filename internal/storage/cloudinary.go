package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type cloudinaryUploader interface {
	Upload(ctx context.Context, file interface{}, uploadParams uploader.UploadParams) (*uploader.UploadResult, error)
}

// CloudinaryStorage implements MediaStore on top of the Cloudinary upload API.
type CloudinaryStorage struct {
	upload cloudinaryUploader
	folder string
}

// NewCloudinaryStorage builds a store from a CLOUDINARY_URL
// ("cloudinary://<key>:<secret>@<cloud_name>").
func NewCloudinaryStorage(cloudinaryURL, folder string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("create cloudinary client: %w", err)
	}
	return &CloudinaryStorage{upload: &cld.Upload, folder: folder}, nil
}

// Provider implements MediaStore.
func (s *CloudinaryStorage) Provider() string { return "cloudinary" }

// Upload sends r to Cloudinary. Resource type detection is left to
// Cloudinary so images and videos share the same path.
func (s *CloudinaryStorage) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	res, err := s.upload.Upload(ctx, r, s.params(opts))
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res == nil {
		return &UploadResult{}, nil
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}

	return &UploadResult{
		URL:  res.SecureURL,
		Name: storedName(res.PublicID, res.Format),
	}, nil
}

func (s *CloudinaryStorage) params(opts UploadOptions) uploader.UploadParams {
	stem := strings.TrimSuffix(path.Base(opts.FileName), path.Ext(opts.FileName))

	return uploader.UploadParams{
		Folder:           s.folder,
		FilenameOverride: stem,
		UseFilename:      api.Bool(true),
		UniqueFilename:   api.Bool(opts.UniqueName),
		Tags:             api.CldAPIArray(opts.Tags),
		ResourceType:     "auto",
	}
}

// storedName is the last public ID segment plus the delivered format.
func storedName(publicID, format string) string {
	if publicID == "" {
		return ""
	}
	name := path.Base(publicID)
	if format != "" && path.Ext(name) == "" {
		name += "." + format
	}
	return name
}
