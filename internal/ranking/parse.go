package ranking

import (
	"strconv"
	"strings"

	"placement-workers/internal/common/logger"
	"placement-workers/internal/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// willingnessScale scores the "work with placement" answers on a 0-10 scale.
var willingnessScale = map[string]int{
	"Yes":                                   10,
	"Maybe":                                 7,
	"Prob not but might be open to one-off": 5,
	"Uncertain":                             4,
	"No (for now)":                          2,
	"Probably No":                           1,
	"Very Likely No":                        0,
	"No":                                    0,
}

// willingness normalises boolean cells and looks the label up. Unknown labels score 0.
func willingness(f models.Field) (string, int) {
	label := f.String()
	switch {
	case f.IsEmpty():
		label = "No"
	case strings.EqualFold(label, "true"):
		label = "Yes"
	case strings.EqualFold(label, "false"):
		label = "No"
	}

	if score, ok := willingnessScale[label]; ok {
		return label, score
	}
	for known, score := range willingnessScale {
		if strings.EqualFold(known, label) {
			return label, score
		}
	}
	return label, 0
}

// commission parses a contract rate cell into a fraction. Plain rates ("1", "0.85")
// parse directly, a "75% ... 100%" tier counts as its midpoint and anything else is 0.
func commission(f models.Field) float64 {
	if f.IsEmpty() {
		return 0
	}
	s := f.String()
	if strings.Contains(s, "75%") && strings.Contains(s, "100%") {
		return 0.875
	}
	if strings.EqualFold(s, "no") {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// amount parses a currency cell, defaulting to 0. Malformed values are logged when log
// is non-nil.
func amount(log logger.Logger, c models.Community, field string, f models.Field) float64 {
	v, ok := f.Float()
	if !ok && !f.IsEmpty() && log != nil {
		log.Debug("unparseable amount, using 0", map[string]interface{}{
			"communityId": c.CommunityID,
			"field":       field,
			"value":       f.String(),
		})
	}
	return v
}

// upfrontCost sums the one-time fees. The pet fee only counts for clients with pets.
func upfrontCost(log logger.Logger, c models.Community, pets bool) float64 {
	total := amount(log, c, "deposit", c.Deposit) +
		amount(log, c, "moveInFee", c.MoveInFee) +
		amount(log, c, "communityFeeOneTime", c.CommunityFee)
	if pets {
		total += amount(log, c, "petFee", c.PetFee)
	}
	return total
}

// money formats whole dollars with thousands separators.
func money(v float64) string {
	return message.NewPrinter(language.English).Sprintf("%.0f", v)
}
