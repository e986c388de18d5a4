// Package google publishes planned slots to Google Calendar and reads busy
// events back as locked slots.
package google

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskquest/pkg/index"
	"github.com/harrisonrobin/taskquest/pkg/model"
	"github.com/harrisonrobin/taskquest/pkg/util"
)

// CalendarClient is a Google Calendar API client for one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	log        *zap.Logger
}

func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, log *zap.Logger) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, log: log}
}

// PublishSlot creates the event for a slot, or patches the existing one when
// it drifted from what the slot should look like.
func (c *CalendarClient) PublishSlot(ctx context.Context, se util.SlotEvent, now time.Time) (*calendar.Event, error) {
	event, err := util.ConvertSlotToEvent(se, now)
	if err != nil {
		return nil, err
	}

	var existing *calendar.Event
	if c.index != nil {
		if eventID := c.index.Get(se.SlotID); eventID != "" {
			existing, err = c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err != nil {
				c.log.Debug("Indexed event not found, searching", zap.String("slot", se.SlotID), zap.Error(err))
				existing = nil
			}
		}
	}
	if existing == nil {
		existing, err = c.GetEventBySlotID(ctx, se.SlotID)
		if err != nil {
			return nil, fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existing != nil {
		patch, err := util.EventNeedsUpdate(existing, event)
		if err != nil {
			return nil, fmt.Errorf("could not compare slot with its calendar event: %w", err)
		}
		if patch == nil {
			c.remember(se.SlotID, existing.Id)
			return existing, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return nil, err
		}
		c.remember(se.SlotID, updated.Id)
		return updated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}
	c.remember(se.SlotID, created.Id)
	c.log.Debug("Event created", zap.String("slot", se.SlotID), zap.String("event", created.Id))
	return created, nil
}

func (c *CalendarClient) remember(slotID, eventID string) {
	if c.index != nil {
		c.index.Set(slotID, eventID)
	}
}

// UnpublishSlot deletes the event of a slot if one is known.
func (c *CalendarClient) UnpublishSlot(ctx context.Context, slotID string) error {
	eventID := ""
	if c.index != nil {
		eventID = c.index.Get(slotID)
	}
	if eventID == "" {
		event, err := c.GetEventBySlotID(ctx, slotID)
		if err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		eventID = event.Id
	}
	if err := c.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	if c.index != nil {
		c.index.Remove(slotID)
	}
	return nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// ListEvents fetches single (expanded) events overlapping [timeMin, timeMax).
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var items []*calendar.Event
	call := c.srv.Events.List(c.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err := call.Pages(ctx, func(page *calendar.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return items, nil
}

// GetEventBySlotID searches for the event carrying slotID in its private properties.
func (c *CalendarClient) GetEventBySlotID(ctx context.Context, slotID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.SlotProperty, slotID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

// BusySlots returns the calendar's own timed, opaque events between start and
// end as locked slots dated date. Events published by taskquest are skipped.
func (c *CalendarClient) BusySlots(ctx context.Context, date string, start, end time.Time) ([]model.Slot, error) {
	events, err := c.ListEvents(ctx, start, end)
	if err != nil {
		return nil, err
	}

	var slots []model.Slot
	for _, e := range events {
		if e.Status == "cancelled" || e.Transparency == "transparent" {
			continue
		}
		if _, ours := util.SlotIDFromEvent(e); ours {
			continue
		}
		s, f, ok := util.EventRange(e)
		if !ok {
			continue
		}
		slots = append(slots, model.Slot{
			ID:     "gcal:" + e.Id,
			Date:   date,
			Start:  s,
			End:    f,
			Locked: true,
			Source: model.SourceCalendar,
		})
	}
	c.log.Debug("Busy events loaded", zap.String("date", date), zap.Int("count", len(slots)))
	return slots, nil
}
