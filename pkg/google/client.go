package google

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/harrisonrobin/taskquest/pkg/auth"
	"github.com/harrisonrobin/taskquest/pkg/index"
)

// NewClient authenticates and returns a client bound to the calendar named calendarName.
func NewClient(ctx context.Context, a *auth.Authenticator, calendarName string, idx *index.EventIndex, log *zap.Logger) (*CalendarClient, error) {
	httpClient, err := a.Client(ctx, auth.Scopes)
	if err != nil {
		return nil, err
	}

	srv, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	calendarID, err := ResolveCalendar(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, log), nil
}

// ResolveCalendar finds the id of the calendar whose summary is name.
func ResolveCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}
