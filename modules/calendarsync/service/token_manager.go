package service

import (
	"context"
	"time"

	"rosterhub/core/cache"
	"rosterhub/core/constants"
	"rosterhub/core/crypto"
	"rosterhub/core/errors"
	"rosterhub/core/logger"
	"rosterhub/core/queue"
	"rosterhub/modules/calendarsync/entity"
	"rosterhub/modules/calendarsync/repository"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
)

// CreateConnectionInput carries the freshly granted credentials from the
// OAuth callback. Tokens arrive in plaintext and leave this package only as
// ciphertext.
type CreateConnectionInput struct {
	UserID         uuid.UUID
	OrganizationID uuid.UUID
	AccountEmail   string
	AccessToken    string
	RefreshToken   string
	ExpiresAt      time.Time
}

// PreferencesPatch merges only the supplied fields.
type PreferencesPatch struct {
	SyncOrgCalendar      *bool
	SyncPersonalCalendar *bool
}

// TokenManager owns the Connection record: credential encryption, proactive
// refresh inside the skew window, and the terminal needs-reauth transition.
type TokenManager struct {
	repo        repository.ConnectionRepository
	mappingRepo repository.SyncMappingRepository
	cipher      crypto.Cipher
	factory     ClientFactory
	queue       queue.Client
	cache       cache.Cache

	oauthConfig *oauth2.Config
	refreshSkew time.Duration

	// now and refreshGrant are hooks for tests.
	now          func() time.Time
	refreshGrant func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

func NewTokenManager(
	repo repository.ConnectionRepository,
	mappingRepo repository.SyncMappingRepository,
	cipher crypto.Cipher,
	factory ClientFactory,
	q queue.Client,
	c cache.Cache,
	clientID, clientSecret string,
	refreshSkew time.Duration,
) *TokenManager {
	if refreshSkew <= 0 {
		refreshSkew = constants.TokenRefreshSkew
	}
	m := &TokenManager{
		repo:        repo,
		mappingRepo: mappingRepo,
		cipher:      cipher,
		factory:     factory,
		queue:       q,
		cache:       c,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleoauth.Endpoint,
		},
		refreshSkew: refreshSkew,
		now:         time.Now,
	}
	m.refreshGrant = func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		return m.oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	}
	return m
}

// GetAuthenticatedClient loads the connection, decrypts its tokens, refreshes
// them when expiry falls inside the skew window, persists any rotation, and
// returns a ready provider client.
func (m *TokenManager) GetAuthenticatedClient(ctx context.Context, connectionID uuid.UUID) (CalendarAPI, *entity.CalendarConnection, error) {
	conn, err := m.repo.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return nil, nil, errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}
	if conn.Status == entity.StatusNeedsReauth {
		return nil, nil, errors.NewAppError(errors.ErrReauthRequired, "connection requires re-authentication", nil)
	}

	accessToken, err := m.decrypt(conn.AccessTokenEnc)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to decrypt access token", err)
	}
	refreshToken, err := m.decrypt(conn.RefreshTokenEnc)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to decrypt refresh token", err)
	}

	if m.now().After(conn.TokenExpiresAt.Add(-m.refreshSkew)) {
		accessToken, err = m.refresh(ctx, conn, refreshToken)
		if err != nil {
			return nil, nil, err
		}
	}

	client, err := m.factory(ctx, accessToken, conn.TokenExpiresAt)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to build calendar client", err)
	}
	return client, conn, nil
}

// refresh performs the refresh grant and persists the rotated credentials
// before returning. Concurrent refreshes resolve last-write-wins; refresh
// tokens rotate monotonically on the provider side so a lost race is
// harmless.
func (m *TokenManager) refresh(ctx context.Context, conn *entity.CalendarConnection, refreshToken string) (string, error) {
	logger.Info("TokenManager:Refresh:Start", "connection_id", conn.ID)

	newToken, err := m.refreshGrant(ctx, refreshToken)
	if err != nil {
		code := classifyProviderError(err)
		if code == errors.ErrReauthRequired {
			m.markNeedsReauth(ctx, conn)
			return "", errors.NewAppError(errors.ErrReauthRequired, "refresh token revoked or invalid", err)
		}
		logger.Error("TokenManager:Refresh:TransientError", "connection_id", conn.ID, "error", err)
		return "", errors.NewAppError(errors.ErrProviderUnavailable, "token refresh failed", err)
	}

	accessEnc, err := m.cipher.Encrypt([]byte(newToken.AccessToken))
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to encrypt access token", err)
	}

	// The provider may rotate the refresh token; keep the old one otherwise.
	rotatedRefresh := refreshToken
	if newToken.RefreshToken != "" {
		rotatedRefresh = newToken.RefreshToken
	}
	refreshEnc, err := m.cipher.Encrypt([]byte(rotatedRefresh))
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to encrypt refresh token", err)
	}

	if err := m.repo.UpdateTokens(ctx, conn.ID, accessEnc, refreshEnc, newToken.Expiry); err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "failed to persist refreshed tokens", err)
	}

	conn.AccessTokenEnc = accessEnc
	conn.RefreshTokenEnc = refreshEnc
	conn.TokenExpiresAt = newToken.Expiry

	logger.Info("TokenManager:Refresh:Success", "connection_id", conn.ID, "expires_at", newToken.Expiry)
	return newToken.AccessToken, nil
}

// markNeedsReauth transitions the connection to the terminal state and
// notifies the user once. Subsequent sync attempts skip the connection until
// it is re-linked.
func (m *TokenManager) markNeedsReauth(ctx context.Context, conn *entity.CalendarConnection) {
	if err := m.repo.SetStatus(ctx, conn.ID, entity.StatusNeedsReauth); err != nil {
		logger.Error("TokenManager:MarkNeedsReauth:SetStatus:Error", "connection_id", conn.ID, "error", err)
	}
	conn.Status = entity.StatusNeedsReauth

	first := true
	if m.cache != nil {
		var err error
		first, err = m.cache.MarkReauthNotified(ctx, conn.ID.String(), 24*time.Hour)
		if err != nil {
			logger.Error("TokenManager:MarkNeedsReauth:Dedup:Error", "connection_id", conn.ID, "error", err)
			first = true
		}
	}
	if first && m.queue != nil {
		if err := m.queue.EnqueueReauthRequired(queue.ReauthRequiredPayload{
			UserID:       conn.UserID,
			ConnectionID: conn.ID,
			AccountEmail: conn.GoogleAccountEmail,
		}); err != nil {
			logger.Error("TokenManager:MarkNeedsReauth:Enqueue:Error", "connection_id", conn.ID, "error", err)
		}
	}
	logger.Warn("TokenManager:MarkNeedsReauth", "connection_id", conn.ID, "user_id", conn.UserID)
}

// CreateConnection encrypts the granted tokens and upserts the connection
// keyed by user id, so re-connecting is idempotent and clears needs_reauth.
func (m *TokenManager) CreateConnection(ctx context.Context, input CreateConnectionInput) (*entity.CalendarConnection, error) {
	accessEnc, err := m.cipher.Encrypt([]byte(input.AccessToken))
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to encrypt access token", err)
	}
	refreshEnc, err := m.cipher.Encrypt([]byte(input.RefreshToken))
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to encrypt refresh token", err)
	}

	conn := &entity.CalendarConnection{
		UserID:             input.UserID,
		OrganizationID:     input.OrganizationID,
		GoogleAccountEmail: input.AccountEmail,
		AccessTokenEnc:     accessEnc,
		RefreshTokenEnc:    refreshEnc,
		TokenExpiresAt:     input.ExpiresAt,
	}

	saved, err := m.repo.UpsertConnection(ctx, conn)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to save connection", err)
	}

	if m.cache != nil {
		if err := m.cache.ClearReauthNotified(ctx, saved.ID.String()); err != nil {
			logger.Warn("TokenManager:CreateConnection:ClearDedup:Error", "connection_id", saved.ID, "error", err)
		}
	}

	logger.Info("TokenManager:CreateConnection:Saved", "connection_id", saved.ID, "user_id", saved.UserID)
	return saved, nil
}

// UpdateConnectionPreferences merges only the supplied fields.
func (m *TokenManager) UpdateConnectionPreferences(ctx context.Context, connectionID uuid.UUID, patch PreferencesPatch) (*entity.CalendarConnection, error) {
	conn, err := m.repo.GetConnectionByID(ctx, connectionID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "calendar connection not found", nil)
	}

	if patch.SyncOrgCalendar != nil {
		conn.SyncOrgCalendar = *patch.SyncOrgCalendar
	}
	if patch.SyncPersonalCalendar != nil {
		conn.SyncPersonalCalendar = *patch.SyncPersonalCalendar
	}

	if err := m.repo.UpdatePreferences(ctx, conn); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to update preferences", err)
	}
	return conn, nil
}

// DeleteConnection removes the connection and its sync mappings on
// disconnect.
func (m *TokenManager) DeleteConnection(ctx context.Context, userID uuid.UUID) error {
	conn, err := m.repo.GetConnectionByUserID(ctx, userID)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to load connection", err)
	}
	if conn == nil {
		return nil
	}

	if err := m.mappingRepo.DeleteByConnection(ctx, conn.ID); err != nil {
		logger.Error("TokenManager:DeleteConnection:Mappings:Error", "connection_id", conn.ID, "error", err)
	}
	if err := m.repo.DeleteConnection(ctx, userID); err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "failed to delete connection", err)
	}
	logger.Info("TokenManager:DeleteConnection:Done", "user_id", userID)
	return nil
}

func (m *TokenManager) decrypt(ciphertext []byte) (string, error) {
	plain, err := m.cipher.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
