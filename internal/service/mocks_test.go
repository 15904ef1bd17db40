package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/peerobs-api/internal/models"
	"github.com/noah-isme/peerobs-api/pkg/gcal"
	"github.com/noah-isme/peerobs-api/pkg/notifier"
)

type memTeacherStore struct {
	teachers map[string]*models.Teacher
}

func newMemTeacherStore(teachers ...*models.Teacher) *memTeacherStore {
	store := &memTeacherStore{teachers: map[string]*models.Teacher{}}
	for _, t := range teachers {
		store.teachers[t.ID] = t
	}
	return store
}

func (m *memTeacherStore) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if t, ok := m.teachers[id]; ok {
		clone := *t
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memTeacherStore) FindByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	for _, t := range m.teachers {
		if strings.EqualFold(t.Email, email) {
			clone := *t
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memTeacherStore) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for _, t := range m.teachers {
		if strings.EqualFold(t.Email, email) && t.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTeacherStore) List(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, int, error) {
	var result []models.Teacher
	for _, t := range m.teachers {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, len(result), nil
}

func (m *memTeacherStore) Create(ctx context.Context, teacher *models.Teacher) error {
	clone := *teacher
	m.teachers[teacher.ID] = &clone
	return nil
}

func (m *memTeacherStore) Update(ctx context.Context, teacher *models.Teacher) error {
	clone := *teacher
	m.teachers[teacher.ID] = &clone
	return nil
}

func (m *memTeacherStore) Deactivate(ctx context.Context, id string) error {
	if t, ok := m.teachers[id]; ok {
		t.Active = false
	}
	return nil
}

type memObservationStore struct {
	items map[string]*models.Observation
}

func newMemObservationStore(observations ...*models.Observation) *memObservationStore {
	store := &memObservationStore{items: map[string]*models.Observation{}}
	for _, o := range observations {
		store.items[o.ID] = o
	}
	return store
}

func (m *memObservationStore) FindByID(ctx context.Context, id string) (*models.Observation, error) {
	if o, ok := m.items[id]; ok {
		clone := *o
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memObservationStore) ListActiveByTeacherAndDate(ctx context.Context, teacherID string, date time.Time) ([]models.Observation, error) {
	var result []models.Observation
	for _, o := range m.items {
		if o.TeacherID == teacherID && o.Date.Equal(date) && o.Status != models.ObservationStatusCanceled {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *memObservationStore) ListActiveByObserverAndDate(ctx context.Context, observerID string, date time.Time) ([]models.Observation, error) {
	var result []models.Observation
	for _, o := range m.items {
		if o.ObserverID == observerID && o.Date.Equal(date) && o.Status != models.ObservationStatusCanceled {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *memObservationStore) List(ctx context.Context, filter models.ObservationFilter) ([]models.Observation, int, error) {
	var result []models.Observation
	for _, o := range m.items {
		if filter.ObserverID != "" && o.ObserverID != filter.ObserverID {
			continue
		}
		if filter.TeacherID != "" && o.TeacherID != filter.TeacherID {
			continue
		}
		if filter.DateFrom != nil && o.Date.Before(*filter.DateFrom) {
			continue
		}
		if filter.DateTo != nil && o.Date.After(*filter.DateTo) {
			continue
		}
		result = append(result, *o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (m *memObservationStore) Create(ctx context.Context, obs *models.Observation) error {
	clone := *obs
	m.items[obs.ID] = &clone
	return nil
}

func (m *memObservationStore) Update(ctx context.Context, obs *models.Observation) error {
	clone := *obs
	m.items[obs.ID] = &clone
	return nil
}

func (m *memObservationStore) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func (m *memObservationStore) CountActiveByObserverInWindow(ctx context.Context, observerID string, from, to time.Time) (int, error) {
	count := 0
	for _, o := range m.items {
		if o.ObserverID != observerID || o.Status == models.ObservationStatusCanceled {
			continue
		}
		if o.Date.Before(from) || o.Date.After(to) {
			continue
		}
		count++
	}
	return count, nil
}

type memSubstituteStore struct {
	items map[string]*models.SubstituteRequest
}

func newMemSubstituteStore(requests ...*models.SubstituteRequest) *memSubstituteStore {
	store := &memSubstituteStore{items: map[string]*models.SubstituteRequest{}}
	for _, r := range requests {
		store.items[r.ID] = r
	}
	return store
}

func (m *memSubstituteStore) FindByID(ctx context.Context, id string) (*models.SubstituteRequest, error) {
	if r, ok := m.items[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memSubstituteStore) FindByObservationID(ctx context.Context, observationID string) (*models.SubstituteRequest, error) {
	for _, r := range m.items {
		if r.ObservationID == observationID && r.Status != models.SubRequestStatusCanceled {
			clone := *r
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memSubstituteStore) List(ctx context.Context, filter models.SubstituteRequestFilter) ([]models.SubstituteRequest, int, error) {
	var result []models.SubstituteRequest
	for _, r := range m.items {
		if len(filter.Status) > 0 {
			match := false
			for _, status := range filter.Status {
				if r.Status == status {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, *r)
	}
	return result, len(result), nil
}

func (m *memSubstituteStore) Create(ctx context.Context, req *models.SubstituteRequest) error {
	clone := *req
	m.items[req.ID] = &clone
	return nil
}

func (m *memSubstituteStore) Update(ctx context.Context, req *models.SubstituteRequest) error {
	clone := *req
	m.items[req.ID] = &clone
	return nil
}

func (m *memSubstituteStore) CancelByObservationID(ctx context.Context, observationID string) error {
	for _, r := range m.items {
		if r.ObservationID == observationID &&
			(r.Status == models.SubRequestStatusPending || r.Status == models.SubRequestStatusApproved) {
			r.Status = models.SubRequestStatusCanceled
		}
	}
	return nil
}

func (m *memSubstituteStore) DeleteByObservationID(ctx context.Context, observationID string) error {
	for id, r := range m.items {
		if r.ObservationID == observationID {
			delete(m.items, id)
		}
	}
	return nil
}

type memAuditSink struct {
	entries []models.AuditLog
}

func (m *memAuditSink) Append(ctx context.Context, entry *models.AuditLog) error {
	m.entries = append(m.entries, *entry)
	return nil
}

type memBellScheduleRepo struct {
	schedules map[models.GradeCohort][]models.BellSchedulePeriod
	lunches   map[string][]models.LunchPeriod
}

func (m *memBellScheduleRepo) ListByCohort(ctx context.Context, cohort models.GradeCohort) ([]models.BellSchedulePeriod, error) {
	return m.schedules[cohort], nil
}

func (m *memBellScheduleRepo) ListLunchPeriods(ctx context.Context, grade string) ([]models.LunchPeriod, error) {
	return m.lunches[grade], nil
}

type recordingNotifier struct {
	sent []string
}

func (n *recordingNotifier) Send(to, subject, textBody, htmlBody string) notifier.Outcome {
	n.sent = append(n.sent, to+": "+subject)
	return notifier.OutcomeSent
}

type recordingCalendar struct {
	created []gcal.Event
	deleted []string
	nextID  int
}

func (c *recordingCalendar) CreateEvent(ctx context.Context, ev gcal.Event) (string, error) {
	c.nextID++
	c.created = append(c.created, ev)
	return "evt-" + string(rune('a'+c.nextID-1)), nil
}

func (c *recordingCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	c.deleted = append(c.deleted, eventID)
	return nil
}

// defaultBellRepo builds a two-cohort schedule with a lunch on period 5 for
// every teaching grade.
func defaultBellRepo() *memBellScheduleRepo {
	periods := func(cohort models.GradeCohort) []models.BellSchedulePeriod {
		var rows []models.BellSchedulePeriod
		for p := 1; p <= 8; p++ {
			rows = append(rows, models.BellSchedulePeriod{
				GradeCohort: cohort,
				Period:      p,
				StartTime:   time.Date(2025, 1, 1, 7+p, 0, 0, 0, time.UTC).Format("15:04"),
				EndTime:     time.Date(2025, 1, 1, 7+p, 50, 0, 0, time.UTC).Format("15:04"),
			})
		}
		return rows
	}
	return &memBellScheduleRepo{
		schedules: map[models.GradeCohort][]models.BellSchedulePeriod{
			models.CohortSix:   periods(models.CohortSix),
			models.CohortSeven: periods(models.CohortSeven),
		},
		lunches: map[string][]models.LunchPeriod{
			models.GradeSix:   {{Grade: models.GradeSix, Period: 5}},
			models.GradeSeven: {{Grade: models.GradeSeven, Period: 5}},
			models.GradeEight: {{Grade: models.GradeEight, Period: 5}},
		},
	}
}
