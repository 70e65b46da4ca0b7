package models

// Importance levels for key moments.
const (
	ImportanceLow      = "low"
	ImportanceMedium   = "medium"
	ImportanceHigh     = "high"
	ImportanceCritical = "critical"
)

// PlayerAction is one entry in a video's action log.
type PlayerAction struct {
	Timestamp   float64  `json:"timestamp"`
	Action      string   `json:"action"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Players     []string `json:"players"`
	Zone        string   `json:"zone,omitempty"`
	Outcome     string   `json:"outcome,omitempty"`
}

// KeyMoment is a notable, timestamped event surfaced for quick
// navigation, distinct from the full action log.
type KeyMoment struct {
	Timestamp   float64  `json:"timestamp"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Importance  string   `json:"importance"`
	Quote       string   `json:"quote,omitempty"`
	Players     []string `json:"players,omitempty"`
}

// PlayerStat is a per-player rating and action breakdown.
type PlayerStat struct {
	Name     string         `json:"name"`
	Position string         `json:"position,omitempty"`
	Rating   float64        `json:"rating"`
	Actions  map[string]int `json:"actions,omitempty"`
}

// TimelineBucket is one per-minute (or per-event) slice of the match
// timeline.
type TimelineBucket struct {
	Minute int    `json:"minute"`
	Label  string `json:"label,omitempty"`
	Events int    `json:"events"`
}

// PositionSample is one tracked position for a player.
type PositionSample struct {
	Timestamp float64 `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity,omitempty"`
}

// PlayerTracking carries per-player position samples, derived movement
// totals and any events the tracker surfaced only at the player level.
type PlayerTracking struct {
	PlayerName     string           `json:"playerName"`
	Positions      []PositionSample `json:"positions,omitempty"`
	DistanceMeters float64          `json:"distanceMeters,omitempty"`
	AvgSpeed       float64          `json:"avgSpeed,omitempty"`
	MaxSpeed       float64          `json:"maxSpeed,omitempty"`
	HeatMap        []PositionSample `json:"heatMap,omitempty"`
	Moments        []KeyMoment      `json:"moments,omitempty"`
}

// TacticalEvent is one timestamped tactical observation.
type TacticalEvent struct {
	Timestamp   float64 `json:"timestamp"`
	Description string  `json:"description"`
}

// TacticalAnalysis groups the tactical observations of a match analysis.
type TacticalAnalysis struct {
	FormationChanges []TacticalEvent `json:"formationChanges,omitempty"`
	PressingMoments  []TacticalEvent `json:"pressingMoments,omitempty"`
	BuildUpSequences []TacticalEvent `json:"buildUpSequences,omitempty"`
}

// StatSplit is a home/away numeric split.
type StatSplit struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// MatchStatistics holds aggregate match numbers.
type MatchStatistics struct {
	Possession    *StatSplit `json:"possession,omitempty"`
	Shots         *StatSplit `json:"shots,omitempty"`
	Passes        *StatSplit `json:"passes,omitempty"`
	Goals         *StatSplit `json:"goals,omitempty"`
	Cards         *StatSplit `json:"cards,omitempty"`
	Substitutions int        `json:"substitutions,omitempty"`
}

// AnalysisData is the canonical analysis schema every video type is
// normalized into. It is produced exactly once per successful analysis
// invocation and immutable thereafter; re-analysis replaces the whole
// value rather than patching it.
//
// Collection fields are always non-nil after normalization so consumers
// never branch on nullability.
type AnalysisData struct {
	PlayerActions         []PlayerAction    `json:"playerActions"`
	KeyMoments            []KeyMoment       `json:"keyMoments"`
	Summary               string            `json:"summary"`
	Insights              []string          `json:"insights"`
	PerformanceRating     float64           `json:"performanceRating"`
	PlayerStats           []PlayerStat      `json:"playerStats,omitempty"`
	Timeline              []TimelineBucket  `json:"timeline,omitempty"`
	PlayerTracking        []PlayerTracking  `json:"playerTracking,omitempty"`
	Tactical              *TacticalAnalysis `json:"tacticalAnalysis,omitempty"`
	MatchStatistics       *MatchStatistics  `json:"matchStatistics,omitempty"`
	SportSpecificInsights []string          `json:"sportSpecificInsights,omitempty"`
	Recommendations       []string          `json:"recommendations"`
	Confidence            float64           `json:"confidence,omitempty"`
	ProcessingTime        float64           `json:"processingTime,omitempty"`
}

// SeekTimestamp clamps an analysis timestamp into [0, duration] for
// playback seeking. Out-of-range timestamps are clamped, never rejected.
func SeekTimestamp(ts, duration float64) float64 {
	if ts < 0 {
		return 0
	}
	if duration > 0 && ts > duration {
		return duration
	}
	return ts
}
