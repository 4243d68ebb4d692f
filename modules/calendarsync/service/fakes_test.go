package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"rosterhub/core/queue"
	"rosterhub/modules/calendarsync/entity"
	schedEntity "rosterhub/modules/scheduling/entity"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

// In-memory fakes for the repository, provider and infrastructure interfaces.
// All fakes are mutex-guarded so fan-out tests can run with real parallelism.

type fakeConnRepo struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*entity.CalendarConnection
}

func newFakeConnRepo(conns ...*entity.CalendarConnection) *fakeConnRepo {
	r := &fakeConnRepo{conns: make(map[uuid.UUID]*entity.CalendarConnection)}
	for _, c := range conns {
		cp := *c
		r.conns[c.ID] = &cp
	}
	return r
}

func (r *fakeConnRepo) UpsertConnection(_ context.Context, conn *entity.CalendarConnection) (*entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.conns {
		if existing.UserID == conn.UserID {
			conn.ID = existing.ID
			conn.Status = entity.StatusConnected
			conn.SyncOrgCalendar = existing.SyncOrgCalendar
			conn.SyncPersonalCalendar = existing.SyncPersonalCalendar
			conn.OrgCalendarID = existing.OrgCalendarID
			conn.PersonalCalendarID = existing.PersonalCalendarID
			cp := *conn
			r.conns[conn.ID] = &cp
			return conn, nil
		}
	}
	conn.ID = uuid.New()
	conn.Status = entity.StatusConnected
	cp := *conn
	r.conns[conn.ID] = &cp
	return conn, nil
}

func (r *fakeConnRepo) GetConnectionByID(_ context.Context, id uuid.UUID) (*entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeConnRepo) GetConnectionByUserID(_ context.Context, userID uuid.UUID) (*entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		if c.UserID == userID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeConnRepo) GetConnectionsByUserIDs(_ context.Context, userIDs []uuid.UUID) ([]entity.CalendarConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.CalendarConnection
	for _, id := range userIDs {
		for _, c := range r.conns {
			if c.UserID == id {
				out = append(out, *c)
			}
		}
	}
	return out, nil
}

func (r *fakeConnRepo) UpdateTokens(_ context.Context, id uuid.UUID, accessTokenEnc, refreshTokenEnc []byte, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return errors.New("connection not found")
	}
	c.AccessTokenEnc = accessTokenEnc
	c.RefreshTokenEnc = refreshTokenEnc
	c.TokenExpiresAt = expiresAt
	return nil
}

func (r *fakeConnRepo) UpdatePreferences(_ context.Context, conn *entity.CalendarConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[conn.ID]
	if !ok {
		return errors.New("connection not found")
	}
	c.SyncOrgCalendar = conn.SyncOrgCalendar
	c.SyncPersonalCalendar = conn.SyncPersonalCalendar
	return nil
}

func (r *fakeConnRepo) SetCalendarID(_ context.Context, id uuid.UUID, column string, calendarID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if !ok {
		return errors.New("connection not found")
	}
	v := calendarID
	switch column {
	case "org_calendar_id":
		c.OrgCalendarID = &v
	case "personal_calendar_id":
		c.PersonalCalendarID = &v
	default:
		return errors.New("unknown column " + column)
	}
	return nil
}

func (r *fakeConnRepo) SetStatus(_ context.Context, id uuid.UUID, status entity.ConnectionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[id]; ok {
		c.Status = status
	}
	return nil
}

func (r *fakeConnRepo) DeleteConnection(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conns {
		if c.UserID == userID {
			delete(r.conns, id)
		}
	}
	return nil
}

type venueKey struct {
	connectionID uuid.UUID
	venueID      uuid.UUID
}

type fakeVenueRepo struct {
	mu   sync.Mutex
	rows map[venueKey]*entity.VenueCalendar
}

func newFakeVenueRepo() *fakeVenueRepo {
	return &fakeVenueRepo{rows: make(map[venueKey]*entity.VenueCalendar)}
}

func (r *fakeVenueRepo) GetByConnectionAndVenue(_ context.Context, connectionID, venueID uuid.UUID) (*entity.VenueCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vc, ok := r.rows[venueKey{connectionID, venueID}]; ok {
		cp := *vc
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeVenueRepo) GetEnabledByConnection(_ context.Context, connectionID uuid.UUID) ([]entity.VenueCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.VenueCalendar
	for k, vc := range r.rows {
		if k.connectionID == connectionID && vc.SyncEnabled {
			out = append(out, *vc)
		}
	}
	return out, nil
}

func (r *fakeVenueRepo) GetByConnection(_ context.Context, connectionID uuid.UUID) ([]entity.VenueCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.VenueCalendar
	for k, vc := range r.rows {
		if k.connectionID == connectionID {
			out = append(out, *vc)
		}
	}
	return out, nil
}

func (r *fakeVenueRepo) Create(_ context.Context, vc *entity.VenueCalendar) (*entity.VenueCalendar, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vc.ID = uuid.New()
	cp := *vc
	r.rows[venueKey{vc.ConnectionID, vc.VenueID}] = &cp
	return vc, nil
}

func (r *fakeVenueRepo) SetSyncEnabled(_ context.Context, connectionID, venueID uuid.UUID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vc, ok := r.rows[venueKey{connectionID, venueID}]; ok {
		vc.SyncEnabled = enabled
	}
	return nil
}

func (r *fakeVenueRepo) UpdateCalendarID(_ context.Context, connectionID, venueID uuid.UUID, calendarID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vc, ok := r.rows[venueKey{connectionID, venueID}]; ok {
		vc.GoogleCalendarID = calendarID
	}
	return nil
}

type mappingKey struct {
	connectionID uuid.UUID
	scope        string
	eventID      uuid.UUID
}

type fakeMappingRepo struct {
	mu   sync.Mutex
	rows map[mappingKey]*entity.SyncMapping
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{rows: make(map[mappingKey]*entity.SyncMapping)}
}

func (r *fakeMappingRepo) Get(_ context.Context, connectionID uuid.UUID, scope string, eventID uuid.UUID) (*entity.SyncMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.rows[mappingKey{connectionID, scope, eventID}]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeMappingRepo) GetByEvent(_ context.Context, eventID uuid.UUID) ([]entity.SyncMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.SyncMapping
	for k, m := range r.rows {
		if k.eventID == eventID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMappingRepo) Upsert(_ context.Context, m *entity.SyncMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.rows[mappingKey{m.ConnectionID, m.Scope, m.EventID}] = &cp
	return nil
}

func (r *fakeMappingRepo) Delete(_ context.Context, connectionID uuid.UUID, scope string, eventID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, mappingKey{connectionID, scope, eventID})
	return nil
}

func (r *fakeMappingRepo) DeleteByConnection(_ context.Context, connectionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.rows {
		if k.connectionID == connectionID {
			delete(r.rows, k)
		}
	}
	return nil
}

// plainCipher keeps tokens readable in assertions.
type plainCipher struct{}

func (plainCipher) Encrypt(plaintext []byte) ([]byte, error) {
	return append([]byte("enc:"), plaintext...), nil
}

func (plainCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 4 || string(ciphertext[:4]) != "enc:" {
		return nil, errors.New("bad ciphertext")
	}
	return ciphertext[4:], nil
}

type providerCall struct {
	op         string // create | insert | patch | delete
	calendarID string
	eventID    string
}

// fakeCalendarAPI records provider calls and returns scripted errors per op.
type fakeCalendarAPI struct {
	mu        sync.Mutex
	calls     []providerCall
	calendars map[string]string

	createErr error
	insertErr error
	patchErr  error
	deleteErr error

	nextCalendarID string
	nextEventID    string
}

func newFakeCalendarAPI() *fakeCalendarAPI {
	return &fakeCalendarAPI{
		calendars:      map[string]string{},
		nextCalendarID: "cal-1",
		nextEventID:    "evt-1",
	}
}

func (f *fakeCalendarAPI) CreateCalendar(_ context.Context, summary, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{op: "create", calendarID: f.nextCalendarID})
	if f.createErr != nil {
		return "", f.createErr
	}
	f.calendars[f.nextCalendarID] = summary
	return f.nextCalendarID, nil
}

func (f *fakeCalendarAPI) ListCalendars(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.calendars))
	for k, v := range f.calendars {
		out[k] = v
	}
	return out, nil
}

func (f *fakeCalendarAPI) InsertEvent(_ context.Context, calendarID string, _ *calendar.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{op: "insert", calendarID: calendarID, eventID: f.nextEventID})
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return f.nextEventID, nil
}

func (f *fakeCalendarAPI) PatchEvent(_ context.Context, calendarID, eventID string, _ *calendar.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{op: "patch", calendarID: calendarID, eventID: eventID})
	return f.patchErr
}

func (f *fakeCalendarAPI) DeleteEvent(_ context.Context, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, providerCall{op: "delete", calendarID: calendarID, eventID: eventID})
	return f.deleteErr
}

func (f *fakeCalendarAPI) callsOf(op string) []providerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []providerCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeCalendarAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func staticFactory(api CalendarAPI) ClientFactory {
	return func(context.Context, string, time.Time) (CalendarAPI, error) {
		return api, nil
	}
}

type fakeQueue struct {
	mu      sync.Mutex
	reauths []queue.ReauthRequiredPayload
	fails   []queue.SyncFailedPayload
}

func (q *fakeQueue) EnqueueReauthRequired(p queue.ReauthRequiredPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reauths = append(q.reauths, p)
	return nil
}

func (q *fakeQueue) EnqueueSyncFailed(p queue.SyncFailedPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fails = append(q.fails, p)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

// fakeCache implements the reauth-dedup surface with a plain set.
type fakeCache struct {
	mu       sync.Mutex
	notified map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{notified: make(map[string]bool)}
}

func (c *fakeCache) IsTokenBlacklisted(context.Context, string) (bool, error) { return false, nil }
func (c *fakeCache) BlacklistToken(context.Context, string, time.Duration) error {
	return nil
}

func (c *fakeCache) MarkReauthNotified(_ context.Context, connectionID string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notified[connectionID] {
		return false, nil
	}
	c.notified[connectionID] = true
	return true, nil
}

func (c *fakeCache) ClearReauthNotified(_ context.Context, connectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.notified, connectionID)
	return nil
}

// fakeEventRepo serves the scheduling read side.
type fakeEventRepo struct {
	mu           sync.Mutex
	events       map[uuid.UUID]*schedEntity.Event
	venues       map[uuid.UUID]*schedEntity.Venue
	orgName      string
	orgAdmins    []uuid.UUID
	venueMembers map[uuid.UUID][]uuid.UUID
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events:       make(map[uuid.UUID]*schedEntity.Event),
		venues:       make(map[uuid.UUID]*schedEntity.Venue),
		orgName:      "Grace Fellowship",
		venueMembers: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *fakeEventRepo) GetEventByID(_ context.Context, id uuid.UUID) (*schedEntity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeEventRepo) CreateEvent(_ context.Context, event *schedEntity.Event) (*schedEntity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	cp := *event
	r.events[event.ID] = &cp
	return event, nil
}

func (r *fakeEventRepo) UpdateEvent(_ context.Context, event *schedEntity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *event
	r.events[event.ID] = &cp
	return nil
}

func (r *fakeEventRepo) DeleteEvent(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, id)
	return nil
}

func (r *fakeEventRepo) SetAssignmentStatus(_ context.Context, eventID, userID uuid.UUID, status schedEntity.AssignmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return errors.New("event not found")
	}
	for i := range e.Assignments {
		if e.Assignments[i].UserID == userID {
			e.Assignments[i].Status = status
		}
	}
	return nil
}

func (r *fakeEventRepo) GetVenue(_ context.Context, id uuid.UUID) (*schedEntity.Venue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.venues[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeEventRepo) GetOrganizationName(context.Context, uuid.UUID) (string, error) {
	return r.orgName, nil
}

func (r *fakeEventRepo) GetOrgAdminUserIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.orgAdmins...), nil
}

func (r *fakeEventRepo) GetVenueMemberUserIDs(_ context.Context, venueID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.venueMembers[venueID]...), nil
}
