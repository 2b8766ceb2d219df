package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/bookbalance/backend/internal/models"
)

const (
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"

	arrCVWarnMedium = 0.20
	arrCVWarnHigh   = 0.30
)

type MetricStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	CV     float64 `json:"cv"`
}

type QualityWarning struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// QualityMetrics is a read-only distributional and compliance snapshot
// of a ledger. Constructed twice per run (before and after the pass
// sequence) so the improvement can be quantified.
type QualityMetrics struct {
	ARR   MetricStats `json:"arr"`
	CRE   MetricStats `json:"cre"`
	Tier1 MetricStats `json:"tier1"`
	Tier2 MetricStats `json:"tier2"`

	ContinuityRate       float64 `json:"continuity_rate"`
	GeoMatchRate         float64 `json:"geo_match_rate"`
	StrategicCompliance  float64 `json:"strategic_compliance"`
	ParentChildAlignment float64 `json:"parent_child_alignment"`

	DistributionScore float64 `json:"distribution_score"`
	ComplianceScore   float64 `json:"compliance_score"`
	RiskScore         float64 `json:"risk_score"`
	OverallScore      float64 `json:"overall_score"`

	Warnings []QualityWarning `json:"warnings"`
}

// ScoreQuality computes quality metrics over a workload snapshot and an
// account→rep assignment map. Strategic reps are excluded from the
// distribution statistics. Pure: never mutates its inputs.
func ScoreQuality(snap []WorkloadSnapshot, reps []models.SalesRep, accounts []models.Account, assignments map[string]string, cfg Config) QualityMetrics {
	repByID := make(map[string]models.SalesRep, len(reps))
	for _, r := range reps {
		repByID[r.RepID] = r
	}

	var arr, cre, tier1, tier2 []float64
	repsOverCRE := 0
	nonStrategic := 0
	for _, w := range snap {
		if repByID[w.RepID].IsStrategicRep {
			continue
		}
		nonStrategic++
		arr = append(arr, w.TotalARR.InexactFloat64())
		cre = append(cre, float64(w.CRECount))
		tier1 = append(tier1, float64(w.Tier1Count))
		tier2 = append(tier2, float64(w.Tier2Count))
		if w.CRECount > cfg.MaxCREPerRep {
			repsOverCRE++
		}
	}

	m := QualityMetrics{
		ARR:   stats(arr),
		CRE:   stats(cre),
		Tier1: stats(tier1),
		Tier2: stats(tier2),
	}
	m.ContinuityRate, m.GeoMatchRate, m.StrategicCompliance, m.ParentChildAlignment = complianceRates(accounts, assignments, repByID, cfg)

	avgCV := (m.ARR.CV + m.CRE.CV + m.Tier1.CV + m.Tier2.CV) / 4
	m.DistributionScore = clamp(100 * (1 - avgCV/0.5))
	m.ComplianceScore = math.Round(100 * (0.4*m.ContinuityRate + 0.3*m.GeoMatchRate + 0.2*m.StrategicCompliance + 0.1*m.ParentChildAlignment))
	if nonStrategic > 0 {
		m.RiskScore = clamp(100 * (1 - float64(repsOverCRE)/float64(nonStrategic)) * (1 - m.CRE.CV))
	}
	m.OverallScore = math.Round(0.40*m.DistributionScore + 0.35*m.ComplianceScore + 0.25*m.RiskScore)

	if m.ARR.CV > arrCVWarnHigh {
		m.Warnings = append(m.Warnings, QualityWarning{Severity: SeverityHigh, Message: fmt.Sprintf("ARR coefficient of variation %.2f exceeds %.2f", m.ARR.CV, arrCVWarnHigh)})
	} else if m.ARR.CV > arrCVWarnMedium {
		m.Warnings = append(m.Warnings, QualityWarning{Severity: SeverityMedium, Message: fmt.Sprintf("ARR coefficient of variation %.2f exceeds %.2f", m.ARR.CV, arrCVWarnMedium)})
	}
	for _, w := range snap {
		if w.CRECount > cfg.MaxCREPerRep {
			m.Warnings = append(m.Warnings, QualityWarning{Severity: SeverityHigh, Message: fmt.Sprintf("rep %s holds %d CRE accounts, cap is %d", w.RepID, w.CRECount, cfg.MaxCREPerRep)})
		}
	}
	return m
}

func complianceRates(accounts []models.Account, assignments map[string]string, repByID map[string]models.SalesRep, cfg Config) (continuity, geo, strategic, parentChild float64) {
	var contHits, contTotal int
	var geoHits, geoTotal int
	var stratHits, stratTotal int
	var pcHits, pcTotal int

	pool := make([]models.SalesRep, 0, len(repByID))
	for _, r := range repByID {
		pool = append(pool, r)
	}

	for _, a := range accounts {
		repID, assigned := assignments[a.ID]
		if !assigned {
			continue
		}
		rep, known := repByID[repID]
		if !known {
			continue
		}

		if a.OwnerID != nil {
			contTotal++
			if *a.OwnerID == repID {
				contHits++
			}
		}

		geoTotal++
		region := cfg.ResolveRegion(a.Territory, a.Geo)
		if strings.EqualFold(strings.TrimSpace(rep.Region), strings.TrimSpace(region)) {
			geoHits++
		}

		stratTotal++
		if ownerIsStrategic(a, pool) == rep.IsStrategicRep {
			stratHits++
		}

		if a.ParentID != nil {
			if parentRep, ok := assignments[*a.ParentID]; ok {
				pcTotal++
				if parentRep == repID {
					pcHits++
				}
			}
		}
	}

	return rate(contHits, contTotal), rate(geoHits, geoTotal), rate(stratHits, stratTotal), rate(pcHits, pcTotal)
}

// rate treats an empty denominator as fully compliant.
func rate(hits, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(hits) / float64(total)
}

func stats(values []float64) MetricStats {
	n := float64(len(values))
	if n == 0 {
		return MetricStats{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / n
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / n)
	cv := 0.0
	if mean != 0 {
		cv = stdDev / mean
	}
	return MetricStats{Mean: mean, StdDev: stdDev, CV: cv}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
