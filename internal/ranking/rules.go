package ranking

import (
	"context"
	"fmt"

	"placement-workers/internal/common/config"
	"placement-workers/internal/common/logger"
	"placement-workers/internal/geo"
	"placement-workers/internal/models"
)

// missingSecondPersonFee ranks communities without second-person pricing last.
const missingSecondPersonFee = 99999.0

// ==========================
// Business Value
// ==========================

// BusinessValue ranks by willingness to work with placement times commission rate.
type BusinessValue struct {
	tolerance float64
}

func NewBusinessValue(tolerance float64) *BusinessValue {
	return &BusinessValue{tolerance: tolerance}
}

func (d *BusinessValue) Name() string { return config.DimensionBusinessValue }
func (d *BusinessValue) Kind() Kind   { return KindRule }

func (d *BusinessValue) Rank(_ context.Context, candidates []models.Community, _ models.ClientRequirement, _ Results) ([]RankResult, error) {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		label, level := willingness(c.WorkWithPlacement)
		rate := commission(c.ContractRate)
		score := float64(level) * rate

		scored = append(scored, Scored{
			CommunityID: c.CommunityID,
			Score:       score,
			Reason:      fmt.Sprintf("Willingness: '%s' (%d/10) x Commission: %.0f%% = %.2f", label, level, rate*100, score),
		})
	}
	return AssignRanks(d.Name(), scored, d.tolerance, HigherIsBetter), nil
}

// ==========================
// Total Cost
// ==========================

// TotalCost ranks by monthly fee plus one-time fees spread over twelve months.
type TotalCost struct {
	tolerance float64
	logger    logger.Logger
}

func NewTotalCost(tolerance float64, log logger.Logger) *TotalCost {
	return &TotalCost{
		tolerance: tolerance,
		logger:    log.WithFields(map[string]interface{}{"dimension": config.DimensionTotalCost}),
	}
}

func (d *TotalCost) Name() string { return config.DimensionTotalCost }
func (d *TotalCost) Kind() Kind   { return KindRule }

func (d *TotalCost) Rank(_ context.Context, candidates []models.Community, req models.ClientRequirement, _ Results) ([]RankResult, error) {
	pets := req.NeedFlag(models.NeedPets)

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		monthly := amount(d.logger, c, "monthlyFee", c.MonthlyFee)
		upfront := upfrontCost(d.logger, c, pets)
		equivalent := monthly + upfront/12

		scored = append(scored, Scored{
			CommunityID: c.CommunityID,
			Score:       equivalent,
			Reason: fmt.Sprintf("$%s/mo + $%s upfront ($%s/mo amortized) = $%s/mo equivalent",
				money(monthly), money(upfront), money(upfront/12), money(equivalent)),
		})
	}
	return AssignRanks(d.Name(), scored, d.tolerance, LowerIsBetter), nil
}

// ==========================
// Geographic Distance
// ==========================

// DistanceProvider measures miles between two ZIP codes. geo.UnknownDistance signals
// that no estimate exists; the error is reserved for cancellation.
type DistanceProvider interface {
	Distance(ctx context.Context, zip1, zip2 string) (float64, error)
}

// LocationResolver turns a free-text location preference into a ZIP code.
type LocationResolver interface {
	Resolve(ctx context.Context, location string) string
}

// Distance ranks by miles from the client's resolved location.
type Distance struct {
	provider  DistanceProvider
	resolver  LocationResolver
	tolerance float64
	logger    logger.Logger
}

func NewDistance(provider DistanceProvider, resolver LocationResolver, tolerance float64, log logger.Logger) *Distance {
	return &Distance{
		provider:  provider,
		resolver:  resolver,
		tolerance: tolerance,
		logger:    log.WithFields(map[string]interface{}{"dimension": config.DimensionDistance}),
	}
}

func (d *Distance) Name() string { return config.DimensionDistance }
func (d *Distance) Kind() Kind   { return KindRule }

func (d *Distance) Rank(ctx context.Context, candidates []models.Community, req models.ClientRequirement, _ Results) ([]RankResult, error) {
	clientZIP := d.resolver.Resolve(ctx, req.LocationPreference)

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		miles := geo.UnknownDistance
		if !c.ZIP.IsEmpty() {
			v, err := d.provider.Distance(ctx, clientZIP, geo.NormalizeZIP(c.ZIP.String()))
			if err != nil {
				return nil, err
			}
			miles = v
		} else {
			d.logger.Debug("community has no ZIP", map[string]interface{}{"communityId": c.CommunityID})
		}

		scored = append(scored, Scored{
			CommunityID: c.CommunityID,
			Score:       miles,
			Reason:      fmt.Sprintf("%.2f miles from client location (ZIP %s)", miles, clientZIP),
		})
	}
	return AssignRanks(d.Name(), scored, d.tolerance, LowerIsBetter), nil
}

// measuredMiles is the distance the distance dimension measured for a community. ok is
// false when it has no measurement: the dimension fell back to positional ranks, or the
// distance is unknown.
func measuredMiles(results Results, communityID int) (miles float64, ok bool) {
	rr, found := results.Find(config.DimensionDistance, communityID)
	if !found || rr.Method == MethodFallback || rr.Score >= geo.UnknownDistance {
		return geo.UnknownDistance, false
	}
	return rr.Score, true
}

// ==========================
// Budget Efficiency
// ==========================

// BudgetEfficiency ranks by the share of the client's budget the monthly fee takes.
type BudgetEfficiency struct {
	tolerance float64
	logger    logger.Logger
}

func NewBudgetEfficiency(tolerance float64, log logger.Logger) *BudgetEfficiency {
	return &BudgetEfficiency{
		tolerance: tolerance,
		logger:    log.WithFields(map[string]interface{}{"dimension": config.DimensionBudget}),
	}
}

func (d *BudgetEfficiency) Name() string { return config.DimensionBudget }
func (d *BudgetEfficiency) Kind() Kind   { return KindRule }

func (d *BudgetEfficiency) Rank(_ context.Context, candidates []models.Community, req models.ClientRequirement, _ Results) ([]RankResult, error) {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		monthly := amount(d.logger, c, "monthlyFee", c.MonthlyFee)

		scored = append(scored, Scored{
			CommunityID: c.CommunityID,
			Score:       budgetRatio(monthly, req.Budget),
			Reason: fmt.Sprintf("$%s/mo is %.1f%% of $%s budget",
				money(monthly), budgetRatio(monthly, req.Budget), money(req.Budget)),
		})
	}
	return AssignRanks(d.Name(), scored, d.tolerance, LowerIsBetter), nil
}

// budgetRatio is fee as a percentage of budget; a missing budget is neutral (100).
func budgetRatio(fee, budget float64) float64 {
	if budget <= 0 {
		return 100
	}
	return fee / budget * 100
}

// ==========================
// Second-Occupant Friendliness
// ==========================

// SecondOccupant ranks by second-person fee for couples. For single clients every
// community shares the middle rank so the dimension does not move the aggregate order.
type SecondOccupant struct {
	tolerance float64
}

func NewSecondOccupant(tolerance float64) *SecondOccupant {
	return &SecondOccupant{tolerance: tolerance}
}

func (d *SecondOccupant) Name() string { return config.DimensionSecondOccupant }
func (d *SecondOccupant) Kind() Kind   { return KindRule }

func (d *SecondOccupant) Rank(_ context.Context, candidates []models.Community, req models.ClientRequirement, _ Results) ([]RankResult, error) {
	if !req.NeedFlag(models.NeedSecondPerson) {
		neutral := float64(len(candidates)+1) / 2
		results := make([]RankResult, len(candidates))
		for i, c := range candidates {
			results[i] = RankResult{
				Dimension:   d.Name(),
				CommunityID: c.CommunityID,
				Rank:        neutral,
				Score:       0,
				Reason:      "Not applicable (client is single)",
				Method:      MethodRule,
			}
		}
		return results, nil
	}

	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		s := Scored{
			CommunityID: c.CommunityID,
			Score:       missingSecondPersonFee,
			Reason:      "No 2nd person fee data (risky for couples)",
		}
		if fee, ok := c.SecondPersonFee.Float(); ok {
			s.Score = fee
			s.Reason = fmt.Sprintf("$%s/mo for second person", money(fee))
		}
		scored = append(scored, s)
	}
	return AssignRanks(d.Name(), scored, d.tolerance, LowerIsBetter), nil
}
