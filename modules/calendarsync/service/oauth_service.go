package service

import (
	"context"
	"time"

	"rosterhub/core/constants"
	"rosterhub/core/errors"
	"rosterhub/core/logger"
	"rosterhub/core/utils"
	"rosterhub/modules/calendarsync/repository"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// OAuthService drives the Google consent flow: state issuance, the code
// exchange, and account identification.
type OAuthService struct {
	stateRepo repository.OAuthStateRepository
	tokens    *TokenManager
	config    *oauth2.Config

	stateTTL time.Duration
}

func NewOAuthService(
	stateRepo repository.OAuthStateRepository,
	tokens *TokenManager,
	clientID, clientSecret, redirectURI string,
) *OAuthService {
	return &OAuthService{
		stateRepo: stateRepo,
		tokens:    tokens,
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     googleoauth.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/calendar",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		stateTTL: constants.OAuthStateTTL,
	}
}

// BeginConnect issues a single-use state token and returns the consent URL.
// access_type=offline with prompt=consent forces Google to return a refresh
// token even for repeat grants.
func (s *OAuthService) BeginConnect(ctx context.Context, userID, orgID uuid.UUID) (string, error) {
	state := utils.GenerateStateToken(constants.OAuthStateLength)

	if err := s.stateRepo.SaveState(ctx, state, userID, orgID, time.Now().Add(s.stateTTL)); err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to persist state token", err)
	}

	url := s.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	logger.Info("OAuthService:BeginConnect", "user_id", userID)
	return url, nil
}

// CompleteConnect consumes the callback: validates the state, exchanges the
// code, resolves the granted account's email, and stores the connection.
func (s *OAuthService) CompleteConnect(ctx context.Context, state, code string) error {
	if state == "" || code == "" {
		return errors.NewAppError(errors.ErrInvalidInput, "missing state or code", nil)
	}

	saved, err := s.stateRepo.ConsumeState(ctx, state)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to consume state token", err)
	}
	if saved == nil || time.Now().After(saved.ExpiresAt) {
		return errors.NewAppError(errors.ErrUnauthorized, "invalid or expired state token", nil)
	}

	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return errors.NewAppError(classifyProviderError(err), "authorization code exchange failed", err)
	}
	if token.RefreshToken == "" {
		return errors.NewAppError(errors.ErrInvalidInput, "provider did not return a refresh token", nil)
	}

	email, err := s.accountEmail(ctx, token)
	if err != nil {
		return errors.NewAppError(classifyProviderError(err), "failed to resolve account email", err)
	}

	_, err = s.tokens.CreateConnection(ctx, CreateConnectionInput{
		UserID:         saved.UserID,
		OrganizationID: saved.OrganizationID,
		AccountEmail:   email,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpiresAt:      token.Expiry,
	})
	if err != nil {
		return err
	}

	logger.Info("OAuthService:CompleteConnect:Connected", "user_id", saved.UserID, "email", email)
	return nil
}

func (s *OAuthService) accountEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(s.config.TokenSource(ctx, token)))
	if err != nil {
		return "", err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return info.Email, nil
}
