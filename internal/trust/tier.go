package trust

import "github.com/unblockhq/unblock/models"

// Tier boundaries. Tier is a pure function of score.
const (
	autonomousMinScore = 80
	standardMinScore   = 40
	probationMinScore  = 15
)

var tierInfos = map[models.Tier]models.TierInfo{
	models.TierAutonomous: {Tier: models.TierAutonomous, Label: "autonomous", CanScoreRealTasks: true, CanAutoApprove: true, TaskAllocationWeight: 1.0},
	models.TierStandard:   {Tier: models.TierStandard, Label: "standard", CanScoreRealTasks: true, CanAutoApprove: false, TaskAllocationWeight: 1.0},
	models.TierProbation:  {Tier: models.TierProbation, Label: "probation", CanScoreRealTasks: true, CanAutoApprove: false, TaskAllocationWeight: 0.5},
	models.TierSuspended:  {Tier: models.TierSuspended, Label: "suspended", CanScoreRealTasks: false, CanAutoApprove: false, TaskAllocationWeight: 0},
}

// TierForScore maps a trust score to its capability tier.
func TierForScore(score float64) models.Tier {
	switch {
	case score >= autonomousMinScore:
		return models.TierAutonomous
	case score >= standardMinScore:
		return models.TierStandard
	case score >= probationMinScore:
		return models.TierProbation
	default:
		return models.TierSuspended
	}
}

// InfoForTier returns the capabilities a tier grants.
func InfoForTier(tier models.Tier) models.TierInfo {
	return tierInfos[tier]
}
