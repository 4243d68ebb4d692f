package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"rosterhub/core/errors"
	"rosterhub/modules/calendarsync/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func encTok(t *testing.T, s string) []byte {
	t.Helper()
	b, err := plainCipher{}.Encrypt([]byte(s))
	require.NoError(t, err)
	return b
}

func testConnection(t *testing.T, expiresIn time.Duration) *entity.CalendarConnection {
	t.Helper()
	conn := &entity.CalendarConnection{
		UserID:             uuid.New(),
		OrganizationID:     uuid.New(),
		GoogleAccountEmail: "singer@example.com",
		AccessTokenEnc:     encTok(t, "access-old"),
		RefreshTokenEnc:    encTok(t, "refresh-old"),
		TokenExpiresAt:     time.Now().Add(expiresIn),
		Status:             entity.StatusConnected,
	}
	conn.ID = uuid.New()
	return conn
}

func newTestTokenManager(repo *fakeConnRepo, api *fakeCalendarAPI, q *fakeQueue, c *fakeCache) *TokenManager {
	return NewTokenManager(repo, newFakeMappingRepo(), plainCipher{}, staticFactory(api), q, c,
		"client-id", "client-secret", 5*time.Minute)
}

func TestGetAuthenticatedClientNoRefreshOutsideSkew(t *testing.T) {
	conn := testConnection(t, time.Hour)
	repo := newFakeConnRepo(conn)
	m := newTestTokenManager(repo, newFakeCalendarAPI(), &fakeQueue{}, newFakeCache())

	refreshCalls := 0
	m.refreshGrant = func(context.Context, string) (*oauth2.Token, error) {
		refreshCalls++
		return nil, nil
	}

	client, got, err := m.GetAuthenticatedClient(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, conn.ID, got.ID)
	assert.Zero(t, refreshCalls)
}

func TestGetAuthenticatedClientRefreshesInsideSkewAndPersists(t *testing.T) {
	conn := testConnection(t, 2*time.Minute) // inside the 5m skew
	repo := newFakeConnRepo(conn)
	m := newTestTokenManager(repo, newFakeCalendarAPI(), &fakeQueue{}, newFakeCache())

	newExpiry := time.Now().Add(time.Hour).Truncate(time.Second)
	refreshCalls := 0
	m.refreshGrant = func(_ context.Context, refreshToken string) (*oauth2.Token, error) {
		refreshCalls++
		assert.Equal(t, "refresh-old", refreshToken)
		return &oauth2.Token{AccessToken: "access-new", RefreshToken: "refresh-new", Expiry: newExpiry}, nil
	}

	_, got, err := m.GetAuthenticatedClient(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshCalls)
	assert.True(t, got.TokenExpiresAt.Equal(newExpiry))

	// The rotated credentials were persisted before the client was returned.
	stored, err := repo.GetConnectionByID(context.Background(), conn.ID)
	require.NoError(t, err)
	assert.True(t, stored.TokenExpiresAt.Equal(newExpiry))
	access, err := plainCipher{}.Decrypt(stored.AccessTokenEnc)
	require.NoError(t, err)
	assert.Equal(t, "access-new", string(access))
	refresh, err := plainCipher{}.Decrypt(stored.RefreshTokenEnc)
	require.NoError(t, err)
	assert.Equal(t, "refresh-new", string(refresh))
}

func TestRefreshKeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	conn := testConnection(t, time.Minute)
	repo := newFakeConnRepo(conn)
	m := newTestTokenManager(repo, newFakeCalendarAPI(), &fakeQueue{}, newFakeCache())

	m.refreshGrant = func(context.Context, string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "access-new", Expiry: time.Now().Add(time.Hour)}, nil
	}

	_, _, err := m.GetAuthenticatedClient(context.Background(), conn.ID)
	require.NoError(t, err)

	stored, err := repo.GetConnectionByID(context.Background(), conn.ID)
	require.NoError(t, err)
	refresh, err := plainCipher{}.Decrypt(stored.RefreshTokenEnc)
	require.NoError(t, err)
	assert.Equal(t, "refresh-old", string(refresh))
}

func invalidGrantErr() error {
	return &oauth2.RetrieveError{
		Response:  &http.Response{StatusCode: http.StatusBadRequest},
		ErrorCode: "invalid_grant",
	}
}

func TestInvalidGrantMarksNeedsReauthAndNotifiesOnce(t *testing.T) {
	conn := testConnection(t, time.Minute)
	repo := newFakeConnRepo(conn)
	q := &fakeQueue{}
	m := newTestTokenManager(repo, newFakeCalendarAPI(), q, newFakeCache())

	refreshCalls := 0
	m.refreshGrant = func(context.Context, string) (*oauth2.Token, error) {
		refreshCalls++
		return nil, invalidGrantErr()
	}

	_, _, err := m.GetAuthenticatedClient(context.Background(), conn.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrReauthRequired))
	assert.Equal(t, 1, refreshCalls)

	stored, _ := repo.GetConnectionByID(context.Background(), conn.ID)
	assert.Equal(t, entity.StatusNeedsReauth, stored.Status)
	require.Len(t, q.reauths, 1)
	assert.Equal(t, conn.UserID, q.reauths[0].UserID)
	assert.Equal(t, "singer@example.com", q.reauths[0].AccountEmail)

	// Terminal: subsequent calls fail fast without touching the provider.
	_, _, err = m.GetAuthenticatedClient(context.Background(), conn.ID)
	assert.True(t, errors.Is(err, errors.ErrReauthRequired))
	assert.Equal(t, 1, refreshCalls)
	assert.Len(t, q.reauths, 1)
}

func TestReauthNotificationDeduped(t *testing.T) {
	conn := testConnection(t, time.Minute)
	repo := newFakeConnRepo(conn)
	q := &fakeQueue{}
	m := newTestTokenManager(repo, newFakeCalendarAPI(), q, newFakeCache())
	m.refreshGrant = func(context.Context, string) (*oauth2.Token, error) {
		return nil, invalidGrantErr()
	}

	_, _, err := m.GetAuthenticatedClient(context.Background(), conn.ID)
	require.Error(t, err)
	require.Len(t, q.reauths, 1)

	// Same episode recurs (say, the status write raced): no second notice.
	require.NoError(t, repo.SetStatus(context.Background(), conn.ID, entity.StatusConnected))
	_, _, err = m.GetAuthenticatedClient(context.Background(), conn.ID)
	require.Error(t, err)
	assert.Len(t, q.reauths, 1)
}

func TestCreateConnectionUpsertsAndClearsDedup(t *testing.T) {
	repo := newFakeConnRepo()
	c := newFakeCache()
	m := newTestTokenManager(repo, newFakeCalendarAPI(), &fakeQueue{}, c)

	saved, err := m.CreateConnection(context.Background(), CreateConnectionInput{
		UserID:         uuid.New(),
		OrganizationID: uuid.New(),
		AccountEmail:   "pastor@example.com",
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		ExpiresAt:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusConnected, saved.Status)

	// Tokens are stored as ciphertext only.
	access, err := plainCipher{}.Decrypt(saved.AccessTokenEnc)
	require.NoError(t, err)
	assert.Equal(t, "access-1", string(access))

	// Simulate a prior needs_reauth episode that already notified.
	_, err = c.MarkReauthNotified(context.Background(), saved.ID.String(), time.Hour)
	require.NoError(t, err)

	// Reconnecting the same user reuses the row.
	again, err := m.CreateConnection(context.Background(), CreateConnectionInput{
		UserID:       saved.UserID,
		AccountEmail: "pastor@example.com",
		AccessToken:  "access-2",
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)

	// A fresh grant opens a new notification episode.
	first, err := c.MarkReauthNotified(context.Background(), again.ID.String(), time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestUpdateConnectionPreferencesPartialPatch(t *testing.T) {
	conn := testConnection(t, time.Hour)
	conn.SyncOrgCalendar = true
	repo := newFakeConnRepo(conn)
	m := newTestTokenManager(repo, newFakeCalendarAPI(), &fakeQueue{}, newFakeCache())

	enable := true
	updated, err := m.UpdateConnectionPreferences(context.Background(), conn.ID, PreferencesPatch{
		SyncPersonalCalendar: &enable,
	})
	require.NoError(t, err)
	assert.True(t, updated.SyncOrgCalendar) // untouched
	assert.True(t, updated.SyncPersonalCalendar)

	disable := false
	updated, err = m.UpdateConnectionPreferences(context.Background(), conn.ID, PreferencesPatch{
		SyncOrgCalendar: &disable,
	})
	require.NoError(t, err)
	assert.False(t, updated.SyncOrgCalendar)
	assert.True(t, updated.SyncPersonalCalendar)
}

func TestDeleteConnectionRemovesMappings(t *testing.T) {
	conn := testConnection(t, time.Hour)
	repo := newFakeConnRepo(conn)
	mappings := newFakeMappingRepo()
	m := NewTokenManager(repo, mappings, plainCipher{}, staticFactory(newFakeCalendarAPI()),
		&fakeQueue{}, newFakeCache(), "client-id", "client-secret", 5*time.Minute)

	eventID := uuid.New()
	require.NoError(t, mappings.Upsert(context.Background(), &entity.SyncMapping{
		ConnectionID: conn.ID, Scope: entity.ScopeOrganization, EventID: eventID,
		GoogleEventID: "evt-1", ContentHash: "h",
	}))

	require.NoError(t, m.DeleteConnection(context.Background(), conn.UserID))

	gone, err := repo.GetConnectionByUserID(context.Background(), conn.UserID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	mp, err := mappings.Get(context.Background(), conn.ID, entity.ScopeOrganization, eventID)
	require.NoError(t, err)
	assert.Nil(t, mp)
}
