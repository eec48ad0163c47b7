package post

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/feedline/service/internal/response"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before the rest spills to disk.
const multipartMemory = 32 << 20

// PostService is the post behaviour the HTTP layer needs.
type PostService interface {
	Upload(ctx context.Context, in UploadInput) (*Post, error)
	Feed(ctx context.Context) ([]*Post, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler holds HTTP handlers for post endpoints.
type Handler struct {
	svc           PostService
	maxUploadSize int64
	log           zerolog.Logger
}

// NewHandler creates a new post Handler. Request bodies larger than
// maxUploadSize bytes are rejected with 413.
func NewHandler(svc PostService, maxUploadSize int64, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, maxUploadSize: maxUploadSize, log: log}
}

// FeedResponse wraps the feed listing.
type FeedResponse struct {
	Posts []*Post `json:"posts"`
}

// Upload godoc
//
//	@Summary		Upload media
//	@Description	Store an image or video in the media store and create a post for it. Files with a video/* content type become video posts, everything else is an image.
//	@Tags			posts
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"Media file"
//	@Param			caption	formData	string	false	"Caption"
//	@Success		200		{object}	Post
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		413		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RequestTooLarge(w, "File too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	p, err := h.svc.Upload(r.Context(), UploadInput{
		File:        file,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Caption:     r.FormValue("caption"),
	})
	if errors.Is(err, ErrUploadFailed) {
		response.ServerError(w, "Upload failed")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("file_name", header.Filename).Msg("upload failed")
		response.ServerError(w, err.Error())
		return
	}

	response.OK(w, p)
}

// Feed godoc
//
//	@Summary		List feed
//	@Description	Return every post, newest first.
//	@Tags			posts
//	@Produce		json
//	@Success		200	{object}	FeedResponse
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/feed [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Feed(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("feed query failed")
		response.ServerError(w, err.Error())
		return
	}

	response.OK(w, FeedResponse{Posts: posts})
}

// Delete godoc
//
//	@Summary		Delete post
//	@Description	Remove a post by id. The media object is left in the store.
//	@Tags			posts
//	@Produce		json
//	@Security		BearerAuth
//	@Param			post_id	path		string	true	"Post ID"	format(uuid)
//	@Success		200		{object}	response.MessageBody
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		404		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/posts/{post_id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "post_id"))
	if err != nil {
		response.BadRequest(w, "Invalid post ID")
		return
	}

	err = h.svc.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "Post not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("post_id", id.String()).Msg("delete failed")
		response.ServerError(w, err.Error())
		return
	}

	response.Message(w, "Post deleted successfully")
}
