// Package crm holds the CRM pipeline mapping consumed by the decision gate:
// funnel stage keys, their lead STATUS_ID values, and the status sets that
// switch the bot into manual or silent regimes.
package crm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Funnel stage keys. These are the bot's internal names; the CRM STATUS_ID
// they map to is portal-specific and comes from the settings file.
const (
	StageNew        = "NEW"
	StageInWork     = "IN_WORK"
	StageVinPick    = "VIN_PICK"
	StagePricing    = "PRICING"
	StageContact    = "CONTACT"
	StageAddress    = "ADDRESS"
	StageFinal      = "FINAL"
	StageABCPCreate = "ABCP_CREATE"
)

// Settings describes the lead funnel mapping for one portal.
type Settings struct {
	SourceID string `yaml:"sourceId"`

	// LeadFields maps logical field names (OEM, DELIVERY_ADDRESS) to the
	// portal's custom UF_CRM_* field codes.
	LeadFields map[string]string `yaml:"leadFields"`

	// StageToStatusID maps funnel stage keys to lead STATUS_ID values.
	StageToStatusID map[string]string `yaml:"stageToStatusId"`

	// ManualStatuses are statuses where the bot stays silent and waits for
	// a manager to fill the lead-side part-number field.
	ManualStatuses []string `yaml:"manualStatuses"`

	// BotDisabledStatuses are statuses where the bot is switched off entirely.
	BotDisabledStatuses []string `yaml:"botDisabledStatuses"`

	statusToStage map[string]string
}

// Default returns the built-in funnel mapping. A settings file, when
// provided, replaces it wholesale rather than merging.
func Default() *Settings {
	s := &Settings{
		SourceID: "OPENLINES",
		LeadFields: map[string]string{
			"OEM":              "UF_CRM_1762873310878",
			"DELIVERY_ADDRESS": "UF_CRM_1765564522",
		},
		StageToStatusID: map[string]string{
			StageNew:        "NEW",
			StageInWork:     "UC_ZA04R1",
			StageVinPick:    "UC_UAO7E9",
			StagePricing:    "UC_5SCNOB",
			StageContact:    "PROCESSED",
			StageAddress:    "UC_G4O6PE",
			StageFinal:      "UC_T710VD",
			StageABCPCreate: "UC_T710VD",
		},
		ManualStatuses:      []string{"UC_ZA04R1", "UC_UAO7E9"},
		BotDisabledStatuses: nil,
	}
	s.buildReverseMap()
	return s
}

// Load reads settings from a YAML file. An empty path returns the defaults.
func Load(path string) (*Settings, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crm settings: %w", err)
	}

	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse crm settings: %w", err)
	}
	if len(s.StageToStatusID) == 0 {
		return nil, fmt.Errorf("crm settings %s: stageToStatusId is empty", path)
	}
	s.buildReverseMap()
	return s, nil
}

func (s *Settings) buildReverseMap() {
	s.statusToStage = make(map[string]string, len(s.StageToStatusID))
	for stage, statusID := range s.StageToStatusID {
		if statusID == "" {
			continue
		}
		// FINAL and ABCP_CREATE share a status; keep the first mapping stable
		// by preferring non-alias keys.
		if existing, ok := s.statusToStage[statusID]; ok && existing != stage {
			if stage == StageABCPCreate {
				continue
			}
		}
		s.statusToStage[statusID] = stage
	}
}

// StageKeyFor resolves a lead STATUS_ID to its funnel stage key.
// Unknown or empty statuses resolve to "".
func (s *Settings) StageKeyFor(statusID string) string {
	if statusID == "" {
		return ""
	}
	return s.statusToStage[statusID]
}

// StatusIDFor resolves a funnel stage key to its lead STATUS_ID.
func (s *Settings) StatusIDFor(stageKey string) string {
	return s.StageToStatusID[stageKey]
}

// IsManualStatus reports whether the status belongs to the manual set.
func (s *Settings) IsManualStatus(statusID string) bool {
	if statusID == "" {
		return false
	}
	for _, m := range s.ManualStatuses {
		if m == statusID {
			return true
		}
	}
	return false
}

// IsBotDisabledStatus reports whether the bot is switched off for the status.
func (s *Settings) IsBotDisabledStatus(statusID string) bool {
	if statusID == "" {
		return false
	}
	for _, m := range s.BotDisabledStatuses {
		if m == statusID {
			return true
		}
	}
	return false
}

// OEMFieldCode returns the portal's custom field code for the part-number field.
func (s *Settings) OEMFieldCode() string {
	return s.LeadFields["OEM"]
}
