package ranking

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"placement-workers/internal/common/config"
	"placement-workers/internal/models"
)

// CommunityRanking is the aggregate record of one community. Ranks and Reasons only
// hold dimensions that produced a result for it. DistanceMiles is geo.UnknownDistance
// when no distance was measured.
type CommunityRanking struct {
	CommunityID       int                `json:"communityId"`
	CommunityName     string             `json:"communityName"`
	FinalRank         int                `json:"finalRank"`
	CombinedScore     float64            `json:"combinedScore"`
	Ranks             map[string]float64 `json:"ranks"`
	Reasons           map[string]string  `json:"reasons"`
	Methods           map[string]Method  `json:"methods"`
	MonthlyFee        float64            `json:"monthlyFee"`
	DistanceMiles     float64            `json:"distanceMiles"`
	TotalUpfrontCost  float64            `json:"totalUpfrontCost"`
	EstWaitlist       string             `json:"estWaitlist"`
	ContractRate      string             `json:"contractRate"`
	WorkWithPlacement string             `json:"workWithPlacement"`
}

// Aggregator is a weighted Borda count over whichever dimensions ranked each community.
type Aggregator struct {
	weights    map[string]float64
	outputSize int
}

func NewAggregator(weights map[string]float64, outputSize int) *Aggregator {
	return &Aggregator{weights: weights, outputSize: outputSize}
}

func (a *Aggregator) weight(dimension string) float64 {
	if w, ok := a.weights[dimension]; ok {
		return w
	}
	return 1.0
}

// Aggregate scores every candidate with at least one result as the sum of rank x weight
// over its dimensions, orders ascending and keeps the first outputSize with dense final
// ranks. A dimension missing for a candidate adds nothing to its score.
func (a *Aggregator) Aggregate(candidates []models.Community, all Results, req models.ClientRequirement) []CommunityRanking {
	dimensions := make([]string, 0, len(all))
	for name := range all {
		dimensions = append(dimensions, name)
	}
	sort.Strings(dimensions)

	pets := req.NeedFlag(models.NeedPets)
	rankings := make([]CommunityRanking, 0, len(candidates))

	for _, c := range candidates {
		r := CommunityRanking{
			CommunityID:       c.CommunityID,
			CommunityName:     c.DisplayName(),
			Ranks:             make(map[string]float64),
			Reasons:           make(map[string]string),
			Methods:           make(map[string]Method),
			MonthlyFee:        amount(nil, c, "monthlyFee", c.MonthlyFee),
			TotalUpfrontCost:  upfrontCost(nil, c, pets),
			EstWaitlist:       c.EstWaitlist,
			ContractRate:      c.ContractRate.String(),
			WorkWithPlacement: c.WorkWithPlacement.String(),
		}

		for _, dimension := range dimensions {
			rr, ok := all.Find(dimension, c.CommunityID)
			if !ok {
				continue
			}
			r.CombinedScore += rr.Rank * a.weight(dimension)
			r.Ranks[dimension] = rr.Rank
			r.Reasons[dimension] = rr.Reason
			r.Methods[dimension] = rr.Method
		}
		if len(r.Ranks) == 0 {
			continue
		}
		r.DistanceMiles, _ = measuredMiles(all, c.CommunityID)

		if needsHolisticReason(r) {
			r.Reasons[config.DimensionHolistic] = holisticFallbackReason(c, r.MonthlyFee, req)
		}
		rankings = append(rankings, r)
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].CombinedScore < rankings[j].CombinedScore
	})

	if a.outputSize > 0 && len(rankings) > a.outputSize {
		rankings = rankings[:a.outputSize]
	}
	for i := range rankings {
		rankings[i].FinalRank = i + 1
	}
	return rankings
}

// needsHolisticReason is true when the holistic dimension gave no usable explanation.
func needsHolisticReason(r CommunityRanking) bool {
	reason, ok := r.Reasons[config.DimensionHolistic]
	if !ok || strings.TrimSpace(reason) == "" {
		return true
	}
	return r.Methods[config.DimensionHolistic] == MethodFallback || reason == NotRankedReason
}

// holisticFallbackReason explains a community from its waitlist against the client's
// timeline and its fee against the budget.
func holisticFallbackReason(c models.Community, monthlyFee float64, req models.ClientRequirement) string {
	waitlist := strings.TrimSpace(c.EstWaitlist)
	if waitlist == "" {
		waitlist = "Unconfirmed"
	}
	unconfirmed := strings.Contains(strings.ToLower(waitlist), "unconfirmed")

	var match string
	switch req.Timeline {
	case models.TimelineImmediate:
		switch {
		case strings.Contains(waitlist, "Available"):
			match = "available for immediate need"
		case unconfirmed:
			match = "availability unconfirmed, less ideal for immediate need"
		default:
			match = fmt.Sprintf("has waitlist (%s), may not meet immediate timeline", waitlist)
		}
	case models.TimelineNearTerm:
		switch {
		case strings.Contains(waitlist, "Available") || strings.Contains(waitlist, "1-2 months"):
			match = "available for near-term timeline"
		case unconfirmed:
			match = "availability unconfirmed, less ideal for near-term timeline"
		default:
			match = fmt.Sprintf("waitlist status (%s) uncertain for near-term need", waitlist)
		}
	default:
		match = fmt.Sprintf("waitlist: %s", waitlist)
	}

	var value string
	switch ratio := budgetRatio(monthlyFee, req.Budget); {
	case ratio <= 60:
		value = "excellent value"
	case ratio <= 75:
		value = "good value"
	case ratio <= 90:
		value = "fair value"
	default:
		value = "near budget limit"
	}

	reason := fmt.Sprintf("%s. Monthly fee of $%s is %s", capitalize(match), money(monthlyFee), value)
	if unconfirmed {
		reason += " if available"
	}
	return reason + "."
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
