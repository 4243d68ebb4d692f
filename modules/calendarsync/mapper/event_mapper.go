package mapper

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"rosterhub/modules/scheduling/entity"

	"github.com/google/uuid"
	"google.golang.org/api/calendar/v3"
)

// This package is pure: no I/O, no clocks, no storage shapes. The sync service
// hands it canonical events and gets back hashes, predicates and provider
// payloads.

// GenerateEventHash computes the content hash over the synchronized fields.
// assignments is the caller's scope-appropriate slice: role titles are part of
// the personal-scope projection only, so the same event hashes differently on
// a personal calendar than on the organization or venue calendars. Assignment
// order never affects the result.
func GenerateEventHash(event *entity.Event, assignments []entity.Assignment) string {
	roles := make([]string, 0, len(assignments))
	for _, a := range assignments {
		roles = append(roles, a.RoleTitle)
	}
	sort.Strings(roles)

	var b strings.Builder
	b.WriteString(event.Title)
	b.WriteByte('\x1f')
	b.WriteString(event.Description)
	b.WriteByte('\x1f')
	b.WriteString(event.StartsAt.UTC().Format(time.RFC3339))
	b.WriteByte('\x1f')
	b.WriteString(event.EndsAt.UTC().Format(time.RFC3339))
	b.WriteByte('\x1f')
	fmt.Fprintf(&b, "%t", event.AllDay)
	b.WriteByte('\x1f')
	b.WriteString(event.Location)
	b.WriteByte('\x1f')
	b.WriteString(strings.Join(roles, ","))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// FormatDateTime renders an event boundary the way the provider expects:
// date-only for all-day events, RFC3339 datetime with the deployment timezone
// otherwise.
func FormatDateTime(t time.Time, allDay bool, timezone string) *calendar.EventDateTime {
	if allDay {
		return &calendar.EventDateTime{Date: t.Format("2006-01-02")}
	}
	return &calendar.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: timezone,
	}
}

// ShouldSyncToOrganizationCalendar: published events visible to the whole
// membership (or publicly) belong on the organization calendar.
func ShouldSyncToOrganizationCalendar(event *entity.Event) bool {
	if event.Status != entity.EventStatusPublished {
		return false
	}
	return event.Visibility == entity.VisibilityPublic || event.Visibility == entity.VisibilityMembers
}

// ShouldSyncToVenueCalendar applies the organization rule plus the venue link.
func ShouldSyncToVenueCalendar(event *entity.Event, venueID uuid.UUID) bool {
	return ShouldSyncToOrganizationCalendar(event) && event.HasVenue(venueID)
}

// ShouldSyncToPersonalCalendar: the user holds a live assignment (invited or
// accepted), or an explicit invitation record lets them see an otherwise
// hidden event.
func ShouldSyncToPersonalCalendar(event *entity.Event, userID uuid.UUID) bool {
	if event.Status != entity.EventStatusPublished {
		return false
	}
	if a := event.AssignmentFor(userID); a != nil {
		return a.Status == entity.AssignmentInvited || a.Status == entity.AssignmentAccepted
	}
	return event.IsInvited(userID)
}

// PersonalAssignments filters the event's assignments to the ones that belong
// in the user's personal-scope projection.
func PersonalAssignments(event *entity.Event, userID uuid.UUID) []entity.Assignment {
	var out []entity.Assignment
	for _, a := range event.Assignments {
		if a.UserID == userID && (a.Status == entity.AssignmentInvited || a.Status == entity.AssignmentAccepted) {
			out = append(out, a)
		}
	}
	return out
}

// ToProviderEvent builds the full create/update payload. roleTitles is empty
// for organization and venue scopes; for personal scope the user's roles are
// appended to the description.
func ToProviderEvent(event *entity.Event, roleTitles []string, timezone string) *calendar.Event {
	description := event.Description
	if len(roleTitles) > 0 {
		sorted := append([]string(nil), roleTitles...)
		sort.Strings(sorted)
		if description != "" {
			description += "\n\n"
		}
		description += "Your role: " + strings.Join(sorted, ", ")
	}

	return &calendar.Event{
		Summary:     event.Title,
		Description: description,
		Location:    event.Location,
		Start:       FormatDateTime(event.StartsAt, event.AllDay, timezone),
		End:         FormatDateTime(event.EndsAt, event.AllDay, timezone),
	}
}

// RoleTitles projects assignment role names.
func RoleTitles(assignments []entity.Assignment) []string {
	titles := make([]string, 0, len(assignments))
	for _, a := range assignments {
		titles = append(titles, a.RoleTitle)
	}
	return titles
}
