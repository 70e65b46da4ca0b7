package analysis

// Raw response shapes returned by the AI analysis service. The upstream
// service returns a different schema per video type; these structs are
// the four wire contracts the normalizer maps into models.AnalysisData.

type rawShared struct {
	Summary               string   `json:"summary"`
	Insights              []string `json:"insights"`
	PerformanceRating     float64  `json:"performance_rating"`
	SportSpecificInsights []string `json:"sport_specific_insights"`
	Recommendations       []string `json:"recommendations"`
	Confidence            float64  `json:"confidence"`
	ProcessingTime        float64  `json:"processing_time"`
}

type rawEvent struct {
	Time       float64  `json:"time"`
	Type       string   `json:"type"`
	Detail     string   `json:"detail"`
	Confidence float64  `json:"confidence"`
	Players    []string `json:"players"`
	Zone       string   `json:"zone"`
	Outcome    string   `json:"outcome"`
}

type rawMoment struct {
	Time       float64  `json:"time"`
	Type       string   `json:"type"`
	Detail     string   `json:"detail"`
	Importance string   `json:"importance"`
	Players    []string `json:"players"`
}

type rawPlayerStat struct {
	Name     string         `json:"name"`
	Position string         `json:"position"`
	Rating   float64        `json:"rating"`
	Actions  map[string]int `json:"actions"`
}

type rawTimelineBucket struct {
	Minute int    `json:"minute"`
	Label  string `json:"label"`
	Events int    `json:"events"`
}

type rawPosition struct {
	Time      float64 `json:"time"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Intensity float64 `json:"intensity"`
}

type rawTracking struct {
	Player         string        `json:"player"`
	Positions      []rawPosition `json:"positions"`
	DistanceMeters float64       `json:"distance_meters"`
	AvgSpeed       float64       `json:"avg_speed"`
	MaxSpeed       float64       `json:"max_speed"`
	HeatMap        []rawPosition `json:"heat_map"`
	Moments        []rawMoment   `json:"moments"`
}

type rawTacticalEvent struct {
	Time   float64 `json:"time"`
	Detail string  `json:"detail"`
}

type rawSplit struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// rawMatchResponse is the schema for videoType "match": full event and
// moment lists plus stats, timeline, tracking and tactical sections.
type rawMatchResponse struct {
	rawShared
	Events      []rawEvent          `json:"events"`
	KeyMoments  []rawMoment         `json:"key_moments"`
	PlayerStats []rawPlayerStat     `json:"player_stats"`
	Timeline    []rawTimelineBucket `json:"timeline"`
	Tracking    []rawTracking       `json:"player_tracking"`
	Tactical    *struct {
		FormationChanges []rawTacticalEvent `json:"formation_changes"`
		PressingMoments  []rawTacticalEvent `json:"pressing_moments"`
		BuildUpSequences []rawTacticalEvent `json:"build_up_sequences"`
	} `json:"tactical_analysis"`
	Statistics *struct {
		Possession    *rawSplit `json:"possession"`
		Shots         *rawSplit `json:"shots"`
		Passes        *rawSplit `json:"passes"`
		Goals         *rawSplit `json:"goals"`
		Cards         *rawSplit `json:"cards"`
		Substitutions int       `json:"substitutions"`
	} `json:"match_statistics"`
}

// rawTrainingResponse is the schema for videoType "training": no event
// timeline, per-player skill ratings and untimestamped key learnings.
type rawTrainingResponse struct {
	rawShared
	Players []struct {
		Name     string `json:"name"`
		Position string `json:"position"`
		Skills   struct {
			Technical float64 `json:"technical"`
			Physical  float64 `json:"physical"`
			Tactical  float64 `json:"tactical"`
		} `json:"skills"`
		Actions map[string]int `json:"actions"`
	} `json:"players"`
	KeyLearnings []string `json:"key_learnings"`
}

// rawHighlightResponse is the schema for videoType "highlight": a list
// of standout moments scored by skill level.
type rawHighlightResponse struct {
	rawShared
	Moments []struct {
		Time       float64  `json:"time"`
		Title      string   `json:"title"`
		Detail     string   `json:"detail"`
		SkillLevel float64  `json:"skill_level"`
		Players    []string `json:"players"`
	} `json:"moments"`
}

// rawInterviewResponse is the schema for videoType "interview": extracted
// quotes with a three-level importance label.
type rawInterviewResponse struct {
	rawShared
	Quotes []struct {
		Text       string  `json:"text"`
		Speaker    string  `json:"speaker"`
		Time       float64 `json:"time"`
		Importance string  `json:"importance"`
	} `json:"quotes"`
}
