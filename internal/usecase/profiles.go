package usecase

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/prefs"
)

// DefaultProfileIcon is used for profiles created without an icon.
const DefaultProfileIcon = "bell.slash"

// seedProfiles are created when fewer than three profiles are stored.
var seedProfiles = []struct{ name, icon string }{
	{"Personal", "person.fill"},
	{"Work", "briefcase.fill"},
	{"School", "graduationcap.fill"},
}

// ProfileSource gives read access to the current profile.
type ProfileSource interface {
	Current() (domain.Profile, bool)
}

// ProfileUpdate is a partial profile update. Nil fields are left unchanged.
type ProfileUpdate struct {
	Name            *string
	LockTargets     []string
	CategoryTargets []string
	Icon            *string
	IsAllowListMode *bool

	// Set* mark the slice fields as present (a nil slice can mean "clear").
	SetLockTargets     bool
	SetCategoryTargets bool
}

// ProfileStore owns the profile collection and the current selection.
type ProfileStore struct {
	mu        sync.Mutex
	defaults  *prefs.Defaults
	logger    *zap.Logger
	profiles  []domain.Profile
	currentID string
}

// NewProfileStore loads profiles, seeding defaults when needed.
func NewProfileStore(store domain.KeyValueStore, logger *zap.Logger) *ProfileStore {
	s := &ProfileStore{
		defaults: prefs.New(store),
		logger:   logger,
	}
	s.load()
	return s
}

func (s *ProfileStore) load() {
	var decoded []domain.Profile
	err := s.defaults.Decode(prefs.KeySavedProfiles, &decoded)
	switch {
	case err != nil && !prefs.IsNotFound(err):
		s.logger.Warn("stored profiles unreadable, reseeding", zap.Error(err))
		s.seed()
		return
	case err != nil || len(decoded) < len(seedProfiles):
		s.seed()
		return
	}

	s.profiles = decoded
	dirty := s.migrateIcons()

	// The selection must be restored before anything is saved.
	savedID := s.defaults.String(prefs.KeyCurrentProfileID)
	if s.indexOf(savedID) >= 0 {
		s.currentID = savedID
	} else {
		s.currentID = s.profiles[0].ID
		dirty = true
	}
	if dirty {
		s.save()
	}
}

func (s *ProfileStore) seed() {
	s.profiles = make([]domain.Profile, 0, len(seedProfiles))
	for _, sp := range seedProfiles {
		s.profiles = append(s.profiles, domain.Profile{
			ID:              uuid.NewString(),
			Name:            sp.name,
			LockTargets:     []string{},
			CategoryTargets: []string{},
			Icon:            sp.icon,
		})
	}
	s.currentID = s.profiles[0].ID
	s.logger.Info("seeded default profiles", zap.Int("count", len(s.profiles)))
	s.save()
}

// migrateIcons moves seed profiles to their current symbols.
func (s *ProfileStore) migrateIcons() bool {
	changed := false
	for i := range s.profiles {
		for _, sp := range seedProfiles {
			if s.profiles[i].Name == sp.name && s.profiles[i].Icon != sp.icon {
				s.profiles[i].Icon = sp.icon
				changed = true
			}
		}
	}
	return changed
}

func (s *ProfileStore) save() error {
	if err := s.defaults.Encode(prefs.KeySavedProfiles, s.profiles); err != nil {
		s.logger.Error("failed to save profiles", zap.Error(err))
		return err
	}
	if s.currentID == "" {
		return s.defaults.Remove(prefs.KeyCurrentProfileID)
	}
	if err := s.defaults.SetString(prefs.KeyCurrentProfileID, s.currentID); err != nil {
		s.logger.Error("failed to save current profile", zap.Error(err))
		return err
	}
	return nil
}

func (s *ProfileStore) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, p := range s.profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// List returns all profiles in stored order.
func (s *ProfileStore) List() []domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Profile, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = cloneProfile(p)
	}
	return out
}

// Get returns the profile with id.
func (s *ProfileStore) Get(id string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Profile{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}
	return cloneProfile(s.profiles[i]), nil
}

// FindByName returns the first profile named name.
func (s *ProfileStore) FindByName(name string) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Name == name {
			return cloneProfile(p), nil
		}
	}
	return domain.Profile{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, name)
}

// Current returns the selected profile. ok is false when no profile exists.
func (s *ProfileStore) Current() (domain.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(s.currentID); i >= 0 {
		return cloneProfile(s.profiles[i]), true
	}
	for _, p := range s.profiles {
		if p.IsDefault() {
			return cloneProfile(p), true
		}
	}
	if len(s.profiles) > 0 {
		return cloneProfile(s.profiles[0]), true
	}
	return domain.Profile{}, false
}

// Add appends a profile and makes it current. An empty ID is generated.
func (s *ProfileStore) Add(p domain.Profile) (domain.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Icon == "" {
		p.Icon = DefaultProfileIcon
	}
	p = sanitizeProfile(p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(p.ID) >= 0 {
		return domain.Profile{}, fmt.Errorf("profile %s already exists", p.ID)
	}
	s.profiles = append(s.profiles, p)
	s.currentID = p.ID
	s.logger.Info("profile added", zap.String("profile", p.Name), zap.String("id", p.ID))
	return cloneProfile(p), s.save()
}

// Update applies a partial update to the profile with id.
func (s *ProfileStore) Update(id string, u ProfileUpdate) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.Profile{}, fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}

	p := s.profiles[i]
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.SetLockTargets {
		p.LockTargets = u.LockTargets
	}
	if u.SetCategoryTargets {
		p.CategoryTargets = u.CategoryTargets
	}
	if u.Icon != nil {
		p.Icon = *u.Icon
	}
	if u.IsAllowListMode != nil {
		p.IsAllowListMode = *u.IsAllowListMode
	}
	s.profiles[i] = sanitizeProfile(p)
	return cloneProfile(s.profiles[i]), s.save()
}

// SetCurrent selects the profile with id.
func (s *ProfileStore) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}
	if s.currentID == id {
		return nil
	}
	s.currentID = id
	s.logger.Info("current profile changed", zap.String("id", id))
	return s.save()
}

// Delete removes the profile with id. Deleting the current profile selects the first remaining one.
func (s *ProfileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrProfileNotFound, id)
	}
	s.profiles = append(s.profiles[:i], s.profiles[i+1:]...)
	if s.currentID == id {
		s.currentID = ""
		if len(s.profiles) > 0 {
			s.currentID = s.profiles[0].ID
		}
	}
	return s.save()
}

// DeleteAllNonDefault keeps only default profiles.
func (s *ProfileStore) DeleteAllNonDefault() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.profiles[:0]
	for _, p := range s.profiles {
		if p.IsDefault() {
			kept = append(kept, p)
		}
	}
	s.profiles = kept
	if s.indexOf(s.currentID) < 0 {
		s.currentID = ""
		if len(s.profiles) > 0 {
			s.currentID = s.profiles[0].ID
		}
	}
	return s.save()
}

// sanitizeProfile normalises target sets; allow-list profiles never carry categories.
func sanitizeProfile(p domain.Profile) domain.Profile {
	p.LockTargets = domain.NormalizeTargets(p.LockTargets)
	p.CategoryTargets = domain.NormalizeTargets(p.CategoryTargets)
	if p.IsAllowListMode {
		p.CategoryTargets = []string{}
	}
	return p
}

func cloneProfile(p domain.Profile) domain.Profile {
	p.LockTargets = append([]string{}, p.LockTargets...)
	p.CategoryTargets = append([]string{}, p.CategoryTargets...)
	return p
}

var _ ProfileSource = (*ProfileStore)(nil)
