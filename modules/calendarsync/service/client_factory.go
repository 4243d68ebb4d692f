package service

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// CalendarAPI is the slice of the provider API the sync subsystem touches.
// The production implementation wraps the Google Calendar SDK; tests inject a
// fake.
type CalendarAPI interface {
	CreateCalendar(ctx context.Context, summary, colorHex string) (string, error)
	ListCalendars(ctx context.Context) (map[string]string, error) // id -> summary
	InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) (string, error)
	PatchEvent(ctx context.Context, calendarID, eventID string, ev *calendar.Event) error
	DeleteEvent(ctx context.Context, calendarID, eventID string) error
}

// ClientFactory builds an authenticated CalendarAPI from a decrypted access
// token. No package-level client state: every call path carries its own
// credentials.
type ClientFactory func(ctx context.Context, accessToken string, expiry time.Time) (CalendarAPI, error)

// NewGoogleCalendarClient is the production ClientFactory.
func NewGoogleCalendarClient(ctx context.Context, accessToken string, expiry time.Time) (CalendarAPI, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      expiry,
	})

	svc, err := calendar.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, err
	}
	return &googleCalendarAPI{svc: svc}, nil
}

type googleCalendarAPI struct {
	svc *calendar.Service
}

func (g *googleCalendarAPI) CreateCalendar(ctx context.Context, summary, colorHex string) (string, error) {
	created, err := g.svc.Calendars.Insert(&calendar.Calendar{Summary: summary}).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	if colorHex != "" {
		entry := &calendar.CalendarListEntry{BackgroundColor: colorHex, ForegroundColor: "#000000"}
		_, err = g.svc.CalendarList.Patch(created.Id, entry).ColorRgbFormat(true).Context(ctx).Do()
		if err != nil {
			// Color is cosmetic; the calendar itself exists.
			return created.Id, nil
		}
	}
	return created.Id, nil
}

func (g *googleCalendarAPI) ListCalendars(ctx context.Context) (map[string]string, error) {
	list, err := g.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list.Items))
	for _, item := range list.Items {
		out[item.Id] = item.Summary
	}
	return out, nil
}

func (g *googleCalendarAPI) InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) (string, error) {
	created, err := g.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (g *googleCalendarAPI) PatchEvent(ctx context.Context, calendarID, eventID string, ev *calendar.Event) error {
	_, err := g.svc.Events.Patch(calendarID, eventID, ev).Context(ctx).Do()
	return err
}

func (g *googleCalendarAPI) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	return g.svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
}
