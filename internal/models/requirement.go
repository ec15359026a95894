// internal/models/requirement.go
package models

// Timeline is the client's move-in urgency.
type Timeline string

const (
	TimelineImmediate Timeline = "immediate"
	TimelineNearTerm  Timeline = "near-term"
	TimelineFlexible  Timeline = "flexible"
)

// Valid reports whether t is one of the known timeline categories.
func (t Timeline) Valid() bool {
	switch t {
	case TimelineImmediate, TimelineNearTerm, TimelineFlexible:
		return true
	}
	return false
}

// Keys used in ClientRequirement.SpecialNeeds.
const (
	NeedApartmentType = "apartment_type_preference"
	NeedPets          = "pets"
	NeedSecondPerson  = "second_person"
)

// ClientRequirement describes one consultation's constraints. It is built once and
// treated as read-only by everything downstream.
type ClientRequirement struct {
	CareLevel          string         `json:"careLevel"`
	Enhanced           bool           `json:"enhanced"`
	Enriched           bool           `json:"enriched"`
	Budget             float64        `json:"budget"`
	Timeline           Timeline       `json:"timeline"`
	LocationPreference string         `json:"locationPreference"`
	SpecialNeeds       map[string]any `json:"specialNeeds,omitempty"`
	ClientName         string         `json:"clientName,omitempty"`
	Notes              string         `json:"notes,omitempty"`
}

// NeedFlag reads a boolean special need. Strings such as "yes" and "true" count.
func (r ClientRequirement) NeedFlag(key string) bool {
	v, ok := r.SpecialNeeds[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch t {
		case "true", "True", "yes", "Yes", "1":
			return true
		}
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

// NeedText reads a string special need, empty when absent.
func (r ClientRequirement) NeedText(key string) string {
	if s, ok := r.SpecialNeeds[key].(string); ok {
		return s
	}
	return ""
}
