package usecase

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// DefaultScheduleName is used for schedules created without a name.
const DefaultScheduleName = "Lock Schedule"

var validate = validator.New(validator.WithRequiredStructEnabled())

// ScheduleSource gives read access to schedules in stored order.
type ScheduleSource interface {
	List() []domain.Schedule
}

// NewSchedule returns an enabled every-day schedule with the default name.
func NewSchedule(profileID string, start, end domain.TimeOfDay) domain.Schedule {
	return domain.Schedule{
		IsEnabled:  true,
		ProfileID:  profileID,
		StartTime:  start,
		EndTime:    end,
		RepeatDays: append([]domain.Weekday{}, domain.AllWeekdays...),
		Name:       DefaultScheduleName,
	}
}

// ValidateSchedule applies the form rules: a profile, at least one valid day, valid times.
func ValidateSchedule(s domain.Schedule) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	return nil
}

// ScheduleStore owns the schedule collection.
type ScheduleStore struct {
	mu        sync.Mutex
	defaults  *prefs.Defaults
	logger    *zap.Logger
	schedules []domain.Schedule
	onChange  func()
}

// NewScheduleStore loads schedules. Unreadable data yields an empty collection.
func NewScheduleStore(store domain.KeyValueStore, logger *zap.Logger) *ScheduleStore {
	s := &ScheduleStore{
		defaults: prefs.New(store),
		logger:   logger,
	}
	var decoded []domain.Schedule
	if err := s.defaults.Decode(prefs.KeySavedSchedules, &decoded); err != nil {
		if !prefs.IsNotFound(err) {
			logger.Warn("stored schedules unreadable, starting empty", zap.Error(err))
		}
		decoded = []domain.Schedule{}
	}
	s.schedules = decoded
	return s
}

// SetOnChange registers a hook run after every mutation (outside the lock).
func (s *ScheduleStore) SetOnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *ScheduleStore) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *ScheduleStore) save() error {
	if err := s.defaults.Encode(prefs.KeySavedSchedules, s.schedules); err != nil {
		s.logger.Error("failed to save schedules", zap.Error(err))
		return err
	}
	return nil
}

func (s *ScheduleStore) indexOf(id string) int {
	for i, sc := range s.schedules {
		if sc.ID == id {
			return i
		}
	}
	return -1
}

// List returns all schedules in stored order.
func (s *ScheduleStore) List() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Schedule, len(s.schedules))
	for i, sc := range s.schedules {
		out[i] = cloneSchedule(sc)
	}
	return out
}

// Get returns the schedule with id.
func (s *ScheduleStore) Get(id string) (domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Schedule{}, fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	return cloneSchedule(s.schedules[i]), nil
}

// Add validates and appends a schedule.
func (s *ScheduleStore) Add(sc domain.Schedule) (domain.Schedule, error) {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.Name == "" {
		sc.Name = DefaultScheduleName
	}
	sc.RepeatDays = normalizeDays(sc.RepeatDays)
	if err := ValidateSchedule(sc); err != nil {
		return domain.Schedule{}, err
	}

	s.mu.Lock()
	if s.indexOf(sc.ID) >= 0 {
		s.mu.Unlock()
		return domain.Schedule{}, fmt.Errorf("schedule %s already exists", sc.ID)
	}
	s.schedules = append(s.schedules, sc)
	err := s.save()
	s.mu.Unlock()

	s.logger.Info("schedule added",
		zap.String("schedule", sc.Name),
		zap.String("start", sc.StartTime.String()),
		zap.String("end", sc.EndTime.String()))
	s.changed()
	return cloneSchedule(sc), err
}

// Update replaces the schedule with the same ID.
func (s *ScheduleStore) Update(sc domain.Schedule) error {
	sc.RepeatDays = normalizeDays(sc.RepeatDays)
	if err := ValidateSchedule(sc); err != nil {
		return err
	}

	s.mu.Lock()
	i := s.indexOf(sc.ID)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, sc.ID)
	}
	s.schedules[i] = sc
	err := s.save()
	s.mu.Unlock()

	s.changed()
	return err
}

// Delete removes the schedule with id.
func (s *ScheduleStore) Delete(id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	s.schedules = append(s.schedules[:i], s.schedules[i+1:]...)
	err := s.save()
	s.mu.Unlock()

	s.changed()
	return err
}

// Toggle flips IsEnabled on the schedule with id.
func (s *ScheduleStore) Toggle(id string) (domain.Schedule, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.Schedule{}, fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	s.schedules[i].IsEnabled = !s.schedules[i].IsEnabled
	sc := cloneSchedule(s.schedules[i])
	err := s.save()
	s.mu.Unlock()

	s.changed()
	return sc, err
}

func normalizeDays(days []domain.Weekday) []domain.Weekday {
	seen := make(map[domain.Weekday]struct{}, len(days))
	out := make([]domain.Weekday, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func cloneSchedule(sc domain.Schedule) domain.Schedule {
	sc.RepeatDays = append([]domain.Weekday{}, sc.RepeatDays...)
	return sc
}

var _ ScheduleSource = (*ScheduleStore)(nil)
