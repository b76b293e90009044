package domain

import (
	"sort"
	"strings"
	"time"
)

// Relevance radii and thresholds for the classifier.
const (
	QuakeMaxDistanceKm   = 300.0
	TsunamiMaxDistanceKm = 200.0
	HeatwaveThresholdC   = 35.0

	// Magnitudes within this band of each other sort as equals, falling
	// back to distance.
	magnitudeTieBand = 0.5
)

// RelevantEvent is a hazard event annotated with its distance to a
// subscriber and the derived severity.
type RelevantEvent struct {
	HazardEvent
	DistanceKm float64 `json:"distance_km"`
	Level      Level   `json:"level"`
	Tier       Tier    `json:"tier,omitempty"`
}

// RelevantEvents filters a discrete snapshot down to the events within
// maxDistanceKm of the subscriber, attaches distance and severity, and
// orders by descending magnitude (ties within 0.5 treated as equal) then
// ascending distance. Events without valid coordinates are dropped.
func RelevantEvents(events []HazardEvent, loc Geo, maxDistanceKm float64) []RelevantEvent {
	relevant := make([]RelevantEvent, 0, len(events))
	for _, ev := range events {
		if !ev.Geo.Valid() {
			continue
		}
		d := DistanceKm(loc, ev.Geo)
		if d > maxDistanceKm {
			continue
		}
		re := RelevantEvent{HazardEvent: ev, DistanceKm: d}
		switch ev.Family {
		case FamilyTsunami:
			re.Tier, re.Level = TsunamiSeverity(ev.AlertLevel)
		default:
			re.Level = QuakeLevel(ev.Magnitude)
		}
		relevant = append(relevant, re)
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		if relevant[i].Magnitude-relevant[j].Magnitude > magnitudeTieBand {
			return true
		}
		if relevant[j].Magnitude-relevant[i].Magnitude > magnitudeTieBand {
			return false
		}
		return relevant[i].DistanceKm < relevant[j].DistanceKm
	})

	return relevant
}

// QuakeLevel maps an earthquake magnitude to an alert level. Monotonic
// non-decreasing in magnitude.
func QuakeLevel(magnitude float64) Level {
	switch {
	case magnitude >= 7:
		return LevelError
	case magnitude >= 5:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// TsunamiSeverity maps a GDACS alert color to the paired tier and level.
// Unknown colors rank Low/info.
func TsunamiSeverity(alertLevel string) (Tier, Level) {
	switch strings.ToUpper(strings.TrimSpace(alertLevel)) {
	case "RED":
		return TierSevere, LevelError
	case "ORANGE":
		return TierHigh, LevelWarning
	case "GREEN":
		return TierModerate, LevelInfo
	default:
		return TierLow, LevelInfo
	}
}

// DischargeTier grades one day's discharge against the series average:
// >3x Severe, >2x High, >1.5x Moderate, else Low. Monotonic non-decreasing
// in discharge/avg.
func DischargeTier(discharge, avg float64) Tier {
	switch {
	case discharge > 3*avg:
		return TierSevere
	case discharge > 2*avg:
		return TierHigh
	case discharge > 1.5*avg:
		return TierModerate
	default:
		return TierLow
	}
}

// EvaluateDischarge runs the rolling-threshold scan over a daily discharge
// series. The average spans the full series (past and forecast days); the
// alert threshold is 1.5x that average; only days strictly in the future
// with discharge above the threshold are flagged. The result fully replaces
// any previous state for the cluster.
func EvaluateDischarge(clusterID string, series DischargeSeries) AlertThresholdState {
	now := clock.Now().UTC()
	state := AlertThresholdState{ClusterID: clusterID, UpdatedAt: now}

	n := len(series.Days)
	if len(series.Discharge) < n {
		n = len(series.Discharge)
	}
	if n == 0 {
		return state
	}

	var sum float64
	for _, d := range series.Discharge[:n] {
		sum += d
	}
	avg := sum / float64(n)
	state.AvgDischarge = avg
	state.AlertThreshold = avg * 1.5
	if avg <= 0 {
		return state
	}

	for i := 0; i < n; i++ {
		day, err := time.Parse("2006-01-02", series.Days[i])
		if err != nil {
			continue
		}
		if !day.After(now) {
			continue
		}
		discharge := series.Discharge[i]
		if discharge <= state.AlertThreshold {
			continue
		}
		tier := DischargeTier(discharge, avg)
		state.AlertDays = append(state.AlertDays, AlertDay{
			Date:      series.Days[i],
			Discharge: discharge,
			Tier:      tier,
		})
		state.HighestTier = HigherTier(state.HighestTier, tier)
	}

	return state
}

// HeatwaveAssessment is the outcome of the fixed-cutoff heatwave rule.
type HeatwaveAssessment struct {
	Alert           bool    `json:"alert"`
	CurrentC        float64 `json:"current_c"`
	HotForecastDays int     `json:"hot_forecast_days"`
}

// EvaluateHeatwave flags an immediate heatwave when the current temperature
// exceeds 35 °C; otherwise it counts forecast days above the cutoff. The
// cutoff is absolute, unlike flood's relative threshold.
func EvaluateHeatwave(obs WeatherObservation) HeatwaveAssessment {
	a := HeatwaveAssessment{CurrentC: obs.TempC}
	if obs.TempC > HeatwaveThresholdC {
		a.Alert = true
		return a
	}
	for _, maxC := range obs.ForecastMaxC {
		if maxC > HeatwaveThresholdC {
			a.HotForecastDays++
		}
	}
	a.Alert = a.HotForecastDays > 0
	return a
}
