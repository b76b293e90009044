package domain

import (
	"time"

	"github.com/google/uuid"
)

// Family identifies one of the tracked hazard families. Each family has its
// own gateway, snapshot cadence, and severity rule.
type Family string

const (
	FamilyQuake   Family = "earthquake"
	FamilyTsunami Family = "tsunami"
	FamilyFlood   Family = "flood"
	FamilyWeather Family = "weather"
)

// ParseFamily validates a family string from an external caller.
func ParseFamily(s string) (Family, bool) {
	switch Family(s) {
	case FamilyQuake, FamilyTsunami, FamilyFlood, FamilyWeather:
		return Family(s), true
	}
	return "", false
}

// Continuous reports whether the family is a continuously-tracked hazard
// served through subscriber clusters rather than a discrete event feed.
func (f Family) Continuous() bool {
	return f == FamilyFlood || f == FamilyWeather
}

// Level is the three-step alert level assigned to discrete hazard events.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Tier is the four-step severity scale used for continuous hazards and for
// tsunami alert colors.
type Tier string

const (
	TierLow      Tier = "Low"
	TierModerate Tier = "Moderate"
	TierHigh     Tier = "High"
	TierSevere   Tier = "Severe"
)

// Rank orders tiers Low(1) < Moderate(2) < High(3) < Severe(4).
// Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case TierLow:
		return 1
	case TierModerate:
		return 2
	case TierHigh:
		return 3
	case TierSevere:
		return 4
	default:
		return 0
	}
}

// HigherTier returns the higher-ranked of two tiers.
func HigherTier(a, b Tier) Tier {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// HazardEvent is one discrete event from a provider feed, immutable once
// fetched. AlertLevel is only set for tsunami events (GDACS color).
type HazardEvent struct {
	ID         string    `json:"id"`
	Family     Family    `json:"family"`
	Time       time.Time `json:"time"`
	Geo        Geo       `json:"geo"`
	Magnitude  float64   `json:"magnitude,omitempty"`
	DepthKm    float64   `json:"depth_km,omitempty"`
	Place      string    `json:"place,omitempty"`
	AlertLevel string    `json:"alert_level,omitempty"`
}

// DischargeSeries is a per-cluster daily river discharge series, parallel
// arrays as delivered by the flood provider. Days holds ISO dates
// (2006-01-02); Discharge is in m³/s.
type DischargeSeries struct {
	Days      []string  `json:"days"`
	Discharge []float64 `json:"discharge"`
}

// WeatherObservation is the current conditions at a cluster center, plus the
// forecast reduced to per-day maximum temperatures (today first).
type WeatherObservation struct {
	TempC        float64   `json:"temp_c"`
	FeelsLikeC   float64   `json:"feels_like_c"`
	HumidityPct  float64   `json:"humidity_pct"`
	WindSpeedMS  float64   `json:"wind_speed_ms"`
	Description  string    `json:"description,omitempty"`
	ForecastMaxC []float64 `json:"forecast_max_c,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
}

// Snapshot is the persisted result of one provider fetch. Exactly one of
// Events, Daily, or Weather is set depending on the family; the most
// recently fetched snapshot for a (family, cluster) key is the current one,
// older rows are retained as history.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	Family    Family    `json:"family"`
	ClusterID string    `json:"cluster_id,omitempty"` // empty for event-feed families
	FetchedAt time.Time `json:"fetched_at"`

	// Fetch parameters recorded alongside the payload.
	MinMagnitude float64 `json:"min_magnitude,omitempty"`

	Events  []HazardEvent       `json:"events,omitempty"`
	Daily   *DischargeSeries    `json:"daily,omitempty"`
	Weather *WeatherObservation `json:"weather,omitempty"`
}

// Subscriber is a user location, read-only input owned by the profile
// subsystem.
type Subscriber struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Geo    Geo       `json:"location"`
}

// Cluster is a radius-bounded group of subscribers sharing one provider
// fetch. Membership is append-only; Center is fixed at formation.
type Cluster struct {
	ID        string      `json:"id"`
	Family    Family      `json:"family"`
	Center    Geo         `json:"center"`
	MemberIDs []uuid.UUID `json:"member_ids"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// HasMember reports whether the user already belongs to the cluster.
func (c *Cluster) HasMember(userID uuid.UUID) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AlertDay is one future day flagged by the flood threshold scan.
type AlertDay struct {
	Date      string  `json:"date"`
	Discharge float64 `json:"discharge"`
	Tier      Tier    `json:"tier"`
}

// AlertThresholdState is the per-cluster flood threshold computation. It is
// recomputed and fully replaced, never appended to, under its own staleness
// gate.
type AlertThresholdState struct {
	ClusterID      string     `json:"cluster_id"`
	AvgDischarge   float64    `json:"avg_discharge"`
	AlertThreshold float64    `json:"alert_threshold"` // avg x 1.5
	AlertDays      []AlertDay `json:"alert_days,omitempty"`
	HighestTier    Tier       `json:"highest_tier,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Alert is a classified hazard bound to a subscriber. Discrete families set
// Level (tsunami additionally Tier); continuous families set Tier. Alerts
// are upserted on (UserID, Family, HazardID), so re-classifying an unchanged
// snapshot updates in place rather than duplicating. Active alerts are
// superseded implicitly by newer ones; there is no expiry job.
type Alert struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Family    Family    `json:"family"`
	HazardID  string    `json:"hazard_id"` // provider event id, or cluster id for continuous families
	ClusterID string    `json:"cluster_id,omitempty"`
	Level     Level     `json:"level,omitempty"`
	Tier      Tier      `json:"tier,omitempty"`
	Geo       Geo       `json:"location"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationStatus is the delivery state of a notification, advanced
// externally by the read-receipt API.
type NotificationStatus string

const (
	NotificationSent      NotificationStatus = "Sent"
	NotificationDelivered NotificationStatus = "Delivered"
	NotificationRead      NotificationStatus = "Read"
)

// rank orders Sent(1) < Delivered(2) < Read(3).
func (s NotificationStatus) rank() int {
	switch s {
	case NotificationSent:
		return 1
	case NotificationDelivered:
		return 2
	case NotificationRead:
		return 3
	default:
		return 0
	}
}

// CanTransition reports whether moving to the given status preserves the
// monotonic forward-only Sent → Delivered → Read progression.
func (s NotificationStatus) CanTransition(to NotificationStatus) bool {
	return to.rank() > s.rank()
}

// Notification is derived 1:1 from an Alert when the alert row is first
// inserted.
type Notification struct {
	ID        uuid.UUID          `json:"id"`
	AlertID   uuid.UUID          `json:"alert_id"`
	UserID    uuid.UUID          `json:"user_id"`
	Family    Family             `json:"family"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
