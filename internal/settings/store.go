// Package settings manages the configurable option lists and KPI targets.
package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"crm/internal/logger"
	"crm/internal/validate"
	"crm/pkg/models"
)

type Persister interface {
	SaveSettings(ctx context.Context, settings models.Settings) error
	LoadSettings(ctx context.Context) (*models.Settings, error)
}

// OptionPatch changes the non-nil fields of an option.
type OptionPatch struct {
	Value    *string
	IsActive *bool
	Branch   *string
	ImageURL *string
}

type Store struct {
	p     Persister
	log   zerolog.Logger
	newID func() string
	now   func() time.Time

	mu       sync.RWMutex
	settings models.Settings
}

type Option func(*Store)

// WithIDGenerator replaces the random id source.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// WithClock replaces the timestamp source for targets.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a store holding the default settings until Load is called.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		p:        p,
		log:      logger.WithComponent("settings"),
		newID:    uuid.NewString,
		now:      time.Now,
		settings: Defaults(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load overlays the saved settings onto the defaults. On failure the
// defaults stay in place.
func (s *Store) Load(ctx context.Context) error {
	const op = "Load"

	saved, err := s.p.LoadSettings(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to load settings")
		s.mu.Lock()
		s.settings = Defaults()
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	s.mu.Lock()
	s.settings = overlay(saved)
	s.mu.Unlock()
	return nil
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// Options returns the options of category, or an error for an unknown one.
func (s *Store) Options(c models.Category) ([]models.SettingsOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opts := s.settings.Options(c)
	if opts == nil && !known(c) {
		return nil, unknownCategory(c)
	}
	return append([]models.SettingsOption(nil), opts...), nil
}

// ActiveValues returns the values of the active options of category.
func (s *Store) ActiveValues(c models.Category) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.ActiveValues(c)
}

// AddOption appends a new active option. Values are trimmed, must be
// unique within the category, and salespeople need a branch.
func (s *Store) AddOption(ctx context.Context, c models.Category, value string, extra OptionPatch) (models.SettingsOption, error) {
	const op = "AddOption"

	if !known(c) {
		return models.SettingsOption{}, unknownCategory(c)
	}
	opt := models.SettingsOption{Value: value, IsActive: true}
	opt = apply(opt, extra)
	opt.ID = s.newID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkOption(c, opt, s.settings.Options(c)); err != nil {
		return models.SettingsOption{}, err
	}
	next := s.settings.Clone()
	next.SetOptions(c, append(next.Options(c), opt))
	if err := s.commit(ctx, next); err != nil {
		return models.SettingsOption{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().Str("category", string(c)).Str("value", opt.Value).Msg("Added option")
	return opt, nil
}

// UpdateOption applies patch to the option with id. It reports false when
// the option does not exist.
func (s *Store) UpdateOption(ctx context.Context, c models.Category, id string, patch OptionPatch) (bool, error) {
	const op = "UpdateOption"

	if !known(c) {
		return false, unknownCategory(c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.Clone()
	opts := next.Options(c)
	i := indexByID(opts, id)
	if i < 0 {
		return false, nil
	}
	updated := apply(opts[i], patch)
	others := append(append([]models.SettingsOption(nil), opts[:i]...), opts[i+1:]...)
	if err := checkOption(c, updated, others); err != nil {
		return true, err
	}
	opts[i] = updated
	if err := s.commit(ctx, next); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// ToggleOption flips the active flag of the option with id.
func (s *Store) ToggleOption(ctx context.Context, c models.Category, id string) (bool, error) {
	const op = "ToggleOption"

	if !known(c) {
		return false, unknownCategory(c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.Clone()
	opts := next.Options(c)
	i := indexByID(opts, id)
	if i < 0 {
		return false, nil
	}
	opts[i].IsActive = !opts[i].IsActive
	if err := s.commit(ctx, next); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// DeleteOption removes the option with id.
func (s *Store) DeleteOption(ctx context.Context, c models.Category, id string) (bool, error) {
	const op = "DeleteOption"

	if !known(c) {
		return false, unknownCategory(c)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.Clone()
	opts := next.Options(c)
	i := indexByID(opts, id)
	if i < 0 {
		return false, nil
	}
	next.SetOptions(c, append(opts[:i], opts[i+1:]...))
	if err := s.commit(ctx, next); err != nil {
		return true, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// UpdateKPITarget inserts target, replacing the target with the same scope:
// the same type for company-wide targets, the same collector for individual
// targets and the same salesperson for salesperson targets. A replaced
// target keeps its id and creation time.
func (s *Store) UpdateKPITarget(ctx context.Context, target models.KPITarget) (models.KPITarget, error) {
	const op = "UpdateKPITarget"

	if err := checkTarget(target); err != nil {
		return models.KPITarget{}, err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.Clone()
	kept := make([]models.KPITarget, 0, len(next.KPITargets)+1)
	for _, t := range next.KPITargets {
		if sameScope(t, target) {
			if target.ID == "" {
				target.ID = t.ID
			}
			if target.CreatedAt.IsZero() {
				target.CreatedAt = t.CreatedAt
			}
			continue
		}
		kept = append(kept, t)
	}
	if target.ID == "" {
		target.ID = s.newID()
	}
	if target.CreatedAt.IsZero() {
		target.CreatedAt = now
	}
	target.UpdatedAt = now
	next.KPITargets = append(kept, target)

	if err := s.commit(ctx, next); err != nil {
		return models.KPITarget{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info().Str("type", string(target.Type)).Str("subject", target.Subject()).Msg("Updated KPI target")
	return target, nil
}

// Target returns the target for type and subject. Subject is ignored for
// company-wide types.
func (s *Store) Target(t models.TargetType, subject string) (models.KPITarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	probe := models.KPITarget{Type: t, DebtCollectorName: subject, SalespersonName: subject}
	for _, target := range s.settings.KPITargets {
		if target.Type == t && sameScope(target, probe) {
			return target, true
		}
	}
	return models.KPITarget{}, false
}

// commit persists next and only then publishes it. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next models.Settings) error {
	normalize(&next)
	if err := s.p.SaveSettings(ctx, next); err != nil {
		s.log.Error().Err(err).Msg("Failed to save settings")
		return err
	}
	s.settings = next
	return nil
}

func sameScope(existing, target models.KPITarget) bool {
	switch target.Type {
	case models.TargetIndividual:
		return existing.Type == models.TargetIndividual && existing.DebtCollectorName == target.DebtCollectorName
	case models.TargetSalesperson:
		return existing.Type == models.TargetSalesperson && existing.SalespersonName == target.SalespersonName
	}
	return existing.Type == target.Type
}

func checkTarget(t models.KPITarget) error {
	switch t.Type {
	case models.TargetCompany, models.TargetCompanySales, models.TargetBranchCompany:
	case models.TargetIndividual:
		if strings.TrimSpace(t.DebtCollectorName) == "" {
			return validate.New("debtCollectorName", "is required for individual targets")
		}
	case models.TargetSalesperson:
		if strings.TrimSpace(t.SalespersonName) == "" {
			return validate.New("salespersonName", "is required for salesperson targets")
		}
	default:
		return validate.New("type", fmt.Sprintf("unknown target type %q", t.Type))
	}
	if t.DailyTarget.IsNegative() || t.WeeklyTarget.IsNegative() || t.MonthlyTarget.IsNegative() {
		return validate.New("target", "must not be negative")
	}
	return nil
}

func checkOption(c models.Category, opt models.SettingsOption, others []models.SettingsOption) error {
	if opt.Value == "" {
		return validate.New("value", "is required")
	}
	for _, o := range others {
		if o.ID != opt.ID && strings.EqualFold(o.Value, opt.Value) {
			return validate.New("value", fmt.Sprintf("%q already exists", opt.Value))
		}
	}
	if c == models.CategorySalespeople && opt.Branch == "" {
		return validate.New("branch", "is required for salespeople")
	}
	return nil
}

func apply(opt models.SettingsOption, patch OptionPatch) models.SettingsOption {
	if patch.Value != nil {
		opt.Value = *patch.Value
	}
	if patch.IsActive != nil {
		opt.IsActive = *patch.IsActive
	}
	if patch.Branch != nil {
		opt.Branch = strings.TrimSpace(*patch.Branch)
	}
	if patch.ImageURL != nil {
		opt.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	opt.Value = strings.TrimSpace(opt.Value)
	return opt
}

func indexByID(opts []models.SettingsOption, id string) int {
	for i, o := range opts {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func known(c models.Category) bool {
	for _, k := range models.Categories {
		if k == c {
			return true
		}
	}
	return false
}

func unknownCategory(c models.Category) error {
	return validate.New("category", fmt.Sprintf("unknown category %q", c))
}
