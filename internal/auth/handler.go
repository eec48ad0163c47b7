package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/feedline/service/internal/response"
	"github.com/feedline/service/internal/user"
)

// AuthService is the auth behaviour the HTTP layer needs.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*user.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	RequestVerify(ctx context.Context, email string) error
	Verify(ctx context.Context, token string) (*user.User, error)
}

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc      AuthService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(svc AuthService, validate *validator.Validate, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, validate: validate, log: log}
}

// NewValidator returns a validator that reports fields by their JSON name.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required,email,max=320" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8,max=72"  example:"s3cret-pass"`
}

type loginRequest struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email" example:"user@example.com"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"    validate:"required"            example:"eyJhbGci..."`
	Password string `json:"password" validate:"required,min=8,max=72" example:"n3w-s3cret-pass"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required" example:"eyJhbGci..."`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token" example:"eyJhbGci..."`
	TokenType   string `json:"token_type"   example:"bearer"`
}

// Register godoc
//
//	@Summary		Register
//	@Description	Create an account with an email and password.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		registerRequest	true	"Credentials"
//	@Success		201		{object}	user.User
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.svc.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrUserAlreadyExists) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("register failed")
		response.InternalError(w)
		return
	}

	response.Created(w, u)
}

// Login godoc
//
//	@Summary		Log in
//	@Description	Exchange an email (sent as username) and password for a bearer token.
//	@Tags			auth
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string	true	"Email"
//	@Param			password	formData	string	true	"Password"
//	@Success		200			{object}	TokenResponse
//	@Failure		400			{object}	response.ErrorBody
//	@Failure		500			{object}	response.ErrorBody
//	@Router			/auth/jwt/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		response.BadRequest(w, "invalid form body")
		return
	}
	req := loginRequest{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validate.Struct(req); err != nil {
		response.BadRequest(w, "username and password are required")
		return
	}

	token, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrBadCredentials) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("login failed")
		response.InternalError(w)
		return
	}

	response.OK(w, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Logout godoc
//
//	@Summary		Log out
//	@Description	Bearer tokens are stateless; the client discards its token.
//	@Tags			auth
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	response.ErrorBody
//	@Router			/auth/jwt/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	response.NoContent(w)
}

// ForgotPassword godoc
//
//	@Summary		Forgot password
//	@Description	Issue a password reset token. Always accepted, whether or not the account exists.
//	@Tags			auth
//	@Accept			json
//	@Param			request	body	emailRequest	true	"Account email"
//	@Success		202
//	@Failure		400	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/auth/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		h.log.Error().Err(err).Msg("forgot password failed")
		response.InternalError(w)
		return
	}

	response.Accepted(w)
}

// ResetPassword godoc
//
//	@Summary		Reset password
//	@Description	Set a new password using a reset token.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	resetPasswordRequest	true	"Token and new password"
//	@Success		200
//	@Failure		400	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/auth/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.svc.ResetPassword(r.Context(), req.Token, req.Password)
	if errors.Is(err, ErrResetBadToken) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("reset password failed")
		response.InternalError(w)
		return
	}

	response.OK(w, nil)
}

// RequestVerifyToken godoc
//
//	@Summary		Request verification
//	@Description	Issue an e-mail verification token. Always accepted, whether or not the account exists.
//	@Tags			auth
//	@Accept			json
//	@Param			request	body	emailRequest	true	"Account email"
//	@Success		202
//	@Failure		400	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/auth/request-verify-token [post]
func (h *Handler) RequestVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.RequestVerify(r.Context(), req.Email); err != nil {
		h.log.Error().Err(err).Msg("request verify failed")
		response.InternalError(w)
		return
	}

	response.Accepted(w)
}

// Verify godoc
//
//	@Summary		Verify email
//	@Description	Mark the account behind a verification token as verified.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		verifyRequest	true	"Verification token"
//	@Success		200		{object}	user.User
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/auth/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.svc.Verify(r.Context(), req.Token)
	if errors.Is(err, ErrVerifyBadToken) || errors.Is(err, ErrAlreadyVerified) {
		response.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("verify failed")
		response.InternalError(w)
		return
	}

	response.OK(w, u)
}

// decode reads a JSON body into dst and validates it, writing a 400 and
// returning false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		response.BadRequest(w, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "email":
			return fe.Field() + " must be a valid email address"
		case "min":
			return fe.Field() + " must be at least " + fe.Param() + " characters"
		case "max":
			return fe.Field() + " must be at most " + fe.Param() + " characters"
		}
		return fe.Field() + " is invalid"
	}
	return "invalid request body"
}
