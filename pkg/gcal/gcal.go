package gcal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/noah-isme/peerobs-api/pkg/config"
)

// Event describes a calendar entry for an observation period block.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// Calendar is the external-calendar collaborator. It is only used on the
// confirmation and cancellation side paths, never during booking validation.
type Calendar interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Client wraps the Google Calendar API.
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient builds a Calendar client from service-account credentials.
func NewClient(ctx context.Context, cfg config.CalendarConfig) (*Client, error) {
	service, err := calendar.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(calendar.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	return &Client{service: service, calendarID: calendarID}, nil
}

// CreateEvent inserts an event and returns its external id.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (string, error) {
	attendees := make([]*calendar.EventAttendee, 0, len(ev.Attendees))
	for _, email := range ev.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := c.service.Events.Insert(c.calendarID, &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
		Attendees:   attendees,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes an event by external id.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

// Noop is used when the calendar integration is disabled.
type Noop struct{}

// CreateEvent implements Calendar.
func (Noop) CreateEvent(context.Context, Event) (string, error) { return "", nil }

// DeleteEvent implements Calendar.
func (Noop) DeleteEvent(context.Context, string) error { return nil }
