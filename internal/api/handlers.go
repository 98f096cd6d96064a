package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/settlers/internal/models"
	"github.com/wolfeidau/settlers/internal/store"
)

type handlers struct {
	deps Deps
}

func (h *handlers) checkToken(ctx context.Context, params *CheckAuthTokenParams) (*CheckAuthTokenResult, error) {
	_, ok, err := h.session(ctx, params.Token)
	if err != nil {
		return nil, err
	}
	return &CheckAuthTokenResult{Result: ok}, nil
}

// checkTokenTest lets clients exercise the API path without a session.
func (h *handlers) checkTokenTest(_ context.Context, _ *CheckAuthTokenParams) (*CheckAuthTokenResult, error) {
	return &CheckAuthTokenResult{Result: true}, nil
}

func (h *handlers) uploadPicture(ctx context.Context, params *UploadPictureParams) (*UploadPictureResult, error) {
	logger := zerolog.Ctx(ctx)

	if !isImage(params.Picture) {
		logger.Debug().Int("bytes", len(params.Picture)).Msg("Rejected picture upload")
		return &UploadPictureResult{Result: false}, nil
	}

	session, ok, err := h.session(ctx, params.Token)
	if err != nil || !ok {
		return &UploadPictureResult{Result: false}, err
	}

	err = h.deps.Users.UpdatePhoto(ctx, session.UserID, params.Picture)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		logger.Warn().Str("user_id", session.UserID.String()).Msg("Session refers to missing user")
		return &UploadPictureResult{Result: false}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to store picture: %w", err)
	}

	logger.Info().
		Str("user_id", session.UserID.String()).
		Int("bytes", len(params.Picture)).
		Msg("Stored profile picture")

	return &UploadPictureResult{Result: true}, nil
}

// session resolves a token. Unknown and expired tokens are not errors.
func (h *handlers) session(ctx context.Context, token string) (*models.Session, bool, error) {
	if len(token) != models.SessionTokenLength {
		return nil, false, nil
	}

	session, err := h.deps.Sessions.Get(ctx, token)
	switch {
	case err == nil:
		return session, true, nil
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrSessionExpired):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("failed to look up session: %w", err)
	}
}

func isImage(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(b), "image/")
}
