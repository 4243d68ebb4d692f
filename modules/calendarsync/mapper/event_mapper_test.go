package mapper

import (
	"testing"
	"time"

	"rosterhub/modules/scheduling/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishedEvent() *entity.Event {
	return &entity.Event{
		ID:          uuid.New(),
		Title:       "Sunday Service",
		Description: "Weekly gathering",
		StartsAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:      entity.EventStatusPublished,
		Visibility:  entity.VisibilityMembers,
		Location:    "Main Hall",
	}
}

func TestGenerateEventHashDeterministic(t *testing.T) {
	event := publishedEvent()

	h1 := GenerateEventHash(event, nil)
	h2 := GenerateEventHash(event, nil)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestGenerateEventHashAssignmentOrderIndependent(t *testing.T) {
	event := publishedEvent()
	a := entity.Assignment{RoleTitle: "Usher"}
	b := entity.Assignment{RoleTitle: "Greeter"}

	h1 := GenerateEventHash(event, []entity.Assignment{a, b})
	h2 := GenerateEventHash(event, []entity.Assignment{b, a})
	assert.Equal(t, h1, h2)
}

func TestGenerateEventHashChangesWithContent(t *testing.T) {
	event := publishedEvent()
	base := GenerateEventHash(event, nil)

	changed := *event
	changed.Title = "Sunday Service (moved)"
	assert.NotEqual(t, base, GenerateEventHash(&changed, nil))

	changed = *event
	changed.StartsAt = event.StartsAt.Add(time.Hour)
	assert.NotEqual(t, base, GenerateEventHash(&changed, nil))
}

func TestGenerateEventHashTimezoneNormalized(t *testing.T) {
	event := publishedEvent()
	base := GenerateEventHash(event, nil)

	// The same instant expressed in another zone must hash identically.
	loc := time.FixedZone("EST", -5*3600)
	shifted := *event
	shifted.StartsAt = event.StartsAt.In(loc)
	shifted.EndsAt = event.EndsAt.In(loc)
	assert.Equal(t, base, GenerateEventHash(&shifted, nil))
}

func TestPersonalHashDiffersFromOrgHash(t *testing.T) {
	userID := uuid.New()
	event := publishedEvent()
	event.Assignments = []entity.Assignment{
		{UserID: userID, RoleTitle: "Usher", Status: entity.AssignmentAccepted},
	}

	orgHash := GenerateEventHash(event, nil)
	personalHash := GenerateEventHash(event, PersonalAssignments(event, userID))
	assert.NotEqual(t, orgHash, personalHash)
}

func TestShouldSyncToOrganizationCalendar(t *testing.T) {
	event := publishedEvent()
	assert.True(t, ShouldSyncToOrganizationCalendar(event))

	event.Visibility = entity.VisibilityPublic
	assert.True(t, ShouldSyncToOrganizationCalendar(event))

	event.Visibility = entity.VisibilityPrivate
	assert.False(t, ShouldSyncToOrganizationCalendar(event))

	event.Visibility = entity.VisibilityMembers
	event.Status = entity.EventStatusDraft
	assert.False(t, ShouldSyncToOrganizationCalendar(event))

	event.Status = entity.EventStatusCancelled
	assert.False(t, ShouldSyncToOrganizationCalendar(event))
}

func TestShouldSyncToVenueCalendar(t *testing.T) {
	venueID := uuid.New()
	event := publishedEvent()
	assert.False(t, ShouldSyncToVenueCalendar(event, venueID))

	event.VenueIDs = []uuid.UUID{venueID}
	assert.True(t, ShouldSyncToVenueCalendar(event, venueID))

	event.Status = entity.EventStatusDraft
	assert.False(t, ShouldSyncToVenueCalendar(event, venueID))
}

func TestShouldSyncToPersonalCalendar(t *testing.T) {
	userID := uuid.New()
	event := publishedEvent()

	// No assignment, no invitation: nothing personal to sync.
	assert.False(t, ShouldSyncToPersonalCalendar(event, userID))

	event.Assignments = []entity.Assignment{
		{UserID: userID, RoleTitle: "Usher", Status: entity.AssignmentInvited},
	}
	assert.True(t, ShouldSyncToPersonalCalendar(event, userID))

	event.Assignments[0].Status = entity.AssignmentAccepted
	assert.True(t, ShouldSyncToPersonalCalendar(event, userID))

	event.Assignments[0].Status = entity.AssignmentDeclined
	assert.False(t, ShouldSyncToPersonalCalendar(event, userID))

	// An explicit invitation record is enough on its own.
	event.Assignments = nil
	event.InviteeIDs = []uuid.UUID{userID}
	assert.True(t, ShouldSyncToPersonalCalendar(event, userID))

	event.Status = entity.EventStatusDraft
	assert.False(t, ShouldSyncToPersonalCalendar(event, userID))
}

func TestToProviderEventAppendsRoles(t *testing.T) {
	event := publishedEvent()

	plain := ToProviderEvent(event, nil, "America/New_York")
	assert.Equal(t, "Weekly gathering", plain.Description)
	assert.Equal(t, "Sunday Service", plain.Summary)
	assert.Equal(t, "Main Hall", plain.Location)

	personal := ToProviderEvent(event, []string{"Usher", "Greeter"}, "America/New_York")
	assert.Equal(t, "Weekly gathering\n\nYour role: Greeter, Usher", personal.Description)
}

func TestToProviderEventRolesWithoutDescription(t *testing.T) {
	event := publishedEvent()
	event.Description = ""

	personal := ToProviderEvent(event, []string{"Usher"}, "America/New_York")
	assert.Equal(t, "Your role: Usher", personal.Description)
}

func TestFormatDateTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	allDay := FormatDateTime(at, true, "America/New_York")
	assert.Equal(t, "2026-03-01", allDay.Date)
	assert.Empty(t, allDay.DateTime)

	timed := FormatDateTime(at, false, "America/New_York")
	require.NotEmpty(t, timed.DateTime)
	assert.Equal(t, "America/New_York", timed.TimeZone)
	assert.Empty(t, timed.Date)
}

func TestPersonalAssignmentsFiltersByUserAndStatus(t *testing.T) {
	userID := uuid.New()
	other := uuid.New()
	event := publishedEvent()
	event.Assignments = []entity.Assignment{
		{UserID: userID, RoleTitle: "Usher", Status: entity.AssignmentAccepted},
		{UserID: userID, RoleTitle: "Teardown", Status: entity.AssignmentDeclined},
		{UserID: other, RoleTitle: "Greeter", Status: entity.AssignmentAccepted},
	}

	out := PersonalAssignments(event, userID)
	require.Len(t, out, 1)
	assert.Equal(t, "Usher", out[0].RoleTitle)
}
