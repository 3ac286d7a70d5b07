package settings

import (
	"strconv"

	"crm/pkg/models"
)

// Defaults returns the settings used before anything was saved.
func Defaults() models.Settings {
	return models.Settings{
		Statuses:       options("Pending", "Paid", "Overdue", "Cancelled"),
		Branches:       []models.SettingsOption{},
		Salespeople:    []models.SettingsOption{},
		DebtCollectors: []models.SettingsOption{},
		Banks: options(
			"Maybank", "CIMB Bank", "Public Bank", "RHB Bank",
			"Hong Leong Bank", "AmBank", "Bank Islam", "Bank Rakyat",
		),
		ReceiptStatuses: options("New", "On Hold", "Cancelled", "Reconciled"),
		KPITargets:      []models.KPITarget{},
	}
}

func options(values ...string) []models.SettingsOption {
	out := make([]models.SettingsOption, len(values))
	for i, v := range values {
		out[i] = models.SettingsOption{ID: strconv.Itoa(i + 1), Value: v, IsActive: true}
	}
	return out
}

// overlay returns defaults with every list present in saved replacing the
// default one.
func overlay(saved *models.Settings) models.Settings {
	out := Defaults()
	if saved == nil {
		return out
	}
	for _, c := range models.Categories {
		if opts := saved.Options(c); opts != nil {
			out.SetOptions(c, opts)
		}
	}
	if saved.KPITargets != nil {
		out.KPITargets = saved.KPITargets
	}
	return out
}

// normalize replaces nil lists with empty ones so a saved empty list is
// not mistaken for a missing one on the next load.
func normalize(s *models.Settings) {
	for _, c := range models.Categories {
		if s.Options(c) == nil {
			s.SetOptions(c, []models.SettingsOption{})
		}
	}
	if s.KPITargets == nil {
		s.KPITargets = []models.KPITarget{}
	}
}
