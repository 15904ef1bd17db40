package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/pkg/gcal"
)

// calendarSync is the best-effort calendar side path shared by the booking
// manager and the substitute workflow. Nothing here ever returns an error to
// the caller; failures are logged and the primary operation stands.
type calendarSync struct {
	calendar     gcal.Calendar
	catalog      scheduleCatalog
	teachers     bookingTeacherStore
	observations bookingObservationStore
	logger       *zap.Logger
}

// create inserts one event per party on the observation and stores the
// returned external ids on the row.
func (c *calendarSync) create(ctx context.Context, obs *models.Observation) {
	observer, err := c.teachers.FindByID(ctx, obs.ObserverID)
	if err != nil {
		c.logger.Warn("calendar sync skipped", zap.String("observation_id", obs.ID), zap.Error(err))
		return
	}
	target, err := c.teachers.FindByID(ctx, obs.TeacherID)
	if err != nil {
		c.logger.Warn("calendar sync skipped", zap.String("observation_id", obs.ID), zap.Error(err))
		return
	}

	start, end, err := c.eventWindow(ctx, obs, target)
	if err != nil {
		c.logger.Warn("calendar sync skipped", zap.String("observation_id", obs.ID), zap.Error(err))
		return
	}

	observerEvent := gcal.Event{
		Title:       fmt.Sprintf("Observing %s (room %s)", target.FullName, target.Room),
		Description: fmt.Sprintf("Peer observation, periods %v", []int64(obs.Periods)),
		Start:       start,
		End:         end,
		Attendees:   []string{observer.Email},
	}
	teacherEvent := gcal.Event{
		Title:       fmt.Sprintf("Being observed by %s", observer.FullName),
		Description: fmt.Sprintf("Peer observation, periods %v", []int64(obs.Periods)),
		Start:       start,
		End:         end,
		Attendees:   []string{target.Email},
	}

	if id, err := c.calendar.CreateEvent(ctx, observerEvent); err != nil {
		c.logger.Warn("observer calendar event failed", zap.String("observation_id", obs.ID), zap.Error(err))
	} else if id != "" {
		obs.ObserverEventID = &id
	}
	if id, err := c.calendar.CreateEvent(ctx, teacherEvent); err != nil {
		c.logger.Warn("teacher calendar event failed", zap.String("observation_id", obs.ID), zap.Error(err))
	} else if id != "" {
		obs.TeacherEventID = &id
	}

	if obs.ObserverEventID != nil || obs.TeacherEventID != nil {
		if err := c.observations.Update(ctx, obs); err != nil {
			c.logger.Warn("failed to store calendar event ids", zap.String("observation_id", obs.ID), zap.Error(err))
		}
	}
}

// remove deletes external events by id, tolerating individual failures.
func (c *calendarSync) remove(ctx context.Context, observationID string, eventIDs []string) {
	for _, eventID := range eventIDs {
		if err := c.calendar.DeleteEvent(ctx, eventID); err != nil {
			c.logger.Warn("calendar event removal failed",
				zap.String("observation_id", observationID),
				zap.String("event_id", eventID),
				zap.Error(err))
		}
	}
}

// eventWindow spans the first period's start to the last period's end on the
// observation date, using the target's bell schedule.
func (c *calendarSync) eventWindow(ctx context.Context, obs *models.Observation, target *models.Teacher) (time.Time, time.Time, error) {
	schedule, err := c.catalog.BellSchedule(ctx, CohortForGrades(target.Grades))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	byPeriod := make(map[int64]models.BellSchedulePeriod, len(schedule))
	for _, entry := range schedule {
		byPeriod[int64(entry.Period)] = entry
	}

	var startStr, endStr string
	for _, p := range obs.Periods {
		entry, ok := byPeriod[p]
		if !ok {
			continue
		}
		if startStr == "" || entry.StartTime < startStr {
			startStr = entry.StartTime
		}
		if entry.EndTime > endStr {
			endStr = entry.EndTime
		}
	}
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("no bell schedule entry for periods %v", []int64(obs.Periods))
	}

	start, err := combineDateTime(obs.Date, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := combineDateTime(obs.Date, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func staleEventIDs(obs *models.Observation) []string {
	var ids []string
	if obs.ObserverEventID != nil {
		ids = append(ids, *obs.ObserverEventID)
	}
	if obs.TeacherEventID != nil {
		ids = append(ids, *obs.TeacherEventID)
	}
	return ids
}
