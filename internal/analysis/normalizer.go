// Package analysis normalizes the per-type AI analysis responses into
// the single canonical schema the visualization layers consume, and
// provides the aggregation and filtering primitives over that schema.
package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/pitchside/video-pipeline/pkg/models"
)

// Placeholders substituted when a response omits summary or
// recommendations, so partially successful analyses do not render empty.
const (
	PlaceholderSummary = "Analysis completed. A detailed summary was not provided for this video."
)

var placeholderRecommendations = []string{
	"Review the key moments with the team.",
	"Compare against previous sessions to track progress.",
}

// TrainingMomentInterval is the synthesized spacing between key-learning
// moments: training responses carry no native timestamps.
const TrainingMomentInterval = 60.0

// Normalize maps a raw, type-shaped AI response into the canonical
// AnalysisData. It is a pure function of its inputs: the same response
// and video type always produce a structurally identical result.
func Normalize(videoType models.VideoType, raw json.RawMessage) (*models.AnalysisData, error) {
	var (
		data *models.AnalysisData
		err  error
	)

	switch videoType {
	case models.TypeMatch:
		data, err = normalizeMatch(raw)
	case models.TypeTraining:
		data, err = normalizeTraining(raw)
	case models.TypeHighlight:
		data, err = normalizeHighlight(raw)
	case models.TypeInterview:
		data, err = normalizeInterview(raw)
	default:
		return nil, fmt.Errorf("unknown video type %q", videoType)
	}
	if err != nil {
		return nil, err
	}

	fillDefaults(data)
	return data, nil
}

func normalizeMatch(raw json.RawMessage) (*models.AnalysisData, error) {
	var r rawMatchResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode match response: %w", err)
	}

	data := newData(r.rawShared)

	for _, e := range r.Events {
		data.PlayerActions = append(data.PlayerActions, models.PlayerAction{
			Timestamp:   e.Time,
			Action:      e.Type,
			Description: e.Detail,
			Confidence:  clamp(e.Confidence, 0, 1),
			Players:     nonNil(e.Players),
			Zone:        e.Zone,
			Outcome:     e.Outcome,
		})
	}
	for _, m := range r.KeyMoments {
		data.KeyMoments = append(data.KeyMoments, toKeyMoment(m))
	}
	for _, s := range r.PlayerStats {
		data.PlayerStats = append(data.PlayerStats, models.PlayerStat{
			Name:     s.Name,
			Position: s.Position,
			Rating:   clamp(s.Rating, 0, 10),
			Actions:  s.Actions,
		})
	}
	for _, b := range r.Timeline {
		data.Timeline = append(data.Timeline, models.TimelineBucket{
			Minute: b.Minute,
			Label:  b.Label,
			Events: b.Events,
		})
	}
	data.PlayerTracking = toTracking(r.Tracking)

	if r.Tactical != nil {
		data.Tactical = &models.TacticalAnalysis{
			FormationChanges: toTacticalEvents(r.Tactical.FormationChanges),
			PressingMoments:  toTacticalEvents(r.Tactical.PressingMoments),
			BuildUpSequences: toTacticalEvents(r.Tactical.BuildUpSequences),
		}
	}
	if r.Statistics != nil {
		data.MatchStatistics = &models.MatchStatistics{
			Possession:    toSplit(r.Statistics.Possession),
			Shots:         toSplit(r.Statistics.Shots),
			Passes:        toSplit(r.Statistics.Passes),
			Goals:         toSplit(r.Statistics.Goals),
			Cards:         toSplit(r.Statistics.Cards),
			Substitutions: r.Statistics.Substitutions,
		}
	}

	return data, nil
}

func normalizeTraining(raw json.RawMessage) (*models.AnalysisData, error) {
	var r rawTrainingResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode training response: %w", err)
	}

	data := newData(r.rawShared)

	for _, p := range r.Players {
		rating := (p.Skills.Technical + p.Skills.Physical + p.Skills.Tactical) / 3
		data.PlayerStats = append(data.PlayerStats, models.PlayerStat{
			Name:     p.Name,
			Position: p.Position,
			Rating:   clamp(rating, 0, 10),
			Actions:  p.Actions,
		})
	}

	// Key learnings carry no native timestamps; synthesize evenly
	// spaced ones so the timeline views stay navigable.
	for i, learning := range r.KeyLearnings {
		data.KeyMoments = append(data.KeyMoments, models.KeyMoment{
			Timestamp:   float64(i) * TrainingMomentInterval,
			Type:        "Key Learning",
			Description: learning,
			Importance:  models.ImportanceMedium,
		})
	}

	return data, nil
}

func normalizeHighlight(raw json.RawMessage) (*models.AnalysisData, error) {
	var r rawHighlightResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode highlight response: %w", err)
	}

	data := newData(r.rawShared)

	// Each highlighted moment appears both in the action log and as a
	// key moment.
	for _, m := range r.Moments {
		importance := models.ImportanceMedium
		if m.SkillLevel >= 8 {
			importance = models.ImportanceHigh
		}
		data.PlayerActions = append(data.PlayerActions, models.PlayerAction{
			Timestamp:   m.Time,
			Action:      m.Title,
			Description: m.Detail,
			Confidence:  clamp(m.SkillLevel/10, 0, 1),
			Players:     nonNil(m.Players),
		})
		data.KeyMoments = append(data.KeyMoments, models.KeyMoment{
			Timestamp:   m.Time,
			Type:        m.Title,
			Description: m.Detail,
			Importance:  importance,
			Players:     nonNil(m.Players),
		})
	}

	return data, nil
}

func normalizeInterview(raw json.RawMessage) (*models.AnalysisData, error) {
	var r rawInterviewResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode interview response: %w", err)
	}

	data := newData(r.rawShared)

	for _, q := range r.Quotes {
		data.PlayerActions = append(data.PlayerActions, models.PlayerAction{
			Timestamp:   q.Time,
			Action:      "Quote",
			Description: q.Text,
			Confidence:  importanceConfidence(q.Importance),
			Players:     []string{q.Speaker},
		})
		if q.Importance == models.ImportanceHigh {
			data.KeyMoments = append(data.KeyMoments, models.KeyMoment{
				Timestamp:   q.Time,
				Type:        "Quote",
				Description: q.Text,
				Importance:  models.ImportanceHigh,
				Quote:       q.Text,
				Players:     []string{q.Speaker},
			})
		}
	}

	return data, nil
}

// importanceConfidence maps the interview importance label to a
// confidence value. Unknown labels get the low-tier value.
func importanceConfidence(importance string) float64 {
	switch importance {
	case models.ImportanceHigh:
		return 0.9
	case models.ImportanceMedium:
		return 0.7
	default:
		return 0.5
	}
}

func newData(shared rawShared) *models.AnalysisData {
	return &models.AnalysisData{
		Summary:               shared.Summary,
		Insights:              nonNil(shared.Insights),
		PerformanceRating:     clamp(shared.PerformanceRating, 0, 10),
		SportSpecificInsights: shared.SportSpecificInsights,
		Recommendations:       nonNil(shared.Recommendations),
		Confidence:            clamp(shared.Confidence, 0, 1),
		ProcessingTime:        shared.ProcessingTime,
	}
}

// fillDefaults guarantees non-nil collections and substitutes
// placeholders for missing summary/recommendations.
func fillDefaults(d *models.AnalysisData) {
	if d.PlayerActions == nil {
		d.PlayerActions = []models.PlayerAction{}
	}
	if d.KeyMoments == nil {
		d.KeyMoments = []models.KeyMoment{}
	}
	if d.Insights == nil {
		d.Insights = []string{}
	}
	if d.Summary == "" {
		d.Summary = PlaceholderSummary
	}
	if len(d.Recommendations) == 0 {
		d.Recommendations = append([]string(nil), placeholderRecommendations...)
	}
}

func toKeyMoment(m rawMoment) models.KeyMoment {
	importance := m.Importance
	switch importance {
	case models.ImportanceLow, models.ImportanceMedium, models.ImportanceHigh, models.ImportanceCritical:
	default:
		importance = models.ImportanceMedium
	}
	return models.KeyMoment{
		Timestamp:   m.Time,
		Type:        m.Type,
		Description: m.Detail,
		Importance:  importance,
		Players:     nonNil(m.Players),
	}
}

func toTracking(tracking []rawTracking) []models.PlayerTracking {
	if len(tracking) == 0 {
		return nil
	}
	out := make([]models.PlayerTracking, 0, len(tracking))
	for _, t := range tracking {
		pt := models.PlayerTracking{
			PlayerName:     t.Player,
			DistanceMeters: t.DistanceMeters,
			AvgSpeed:       t.AvgSpeed,
			MaxSpeed:       t.MaxSpeed,
		}
		for _, p := range t.Positions {
			pt.Positions = append(pt.Positions, models.PositionSample{
				Timestamp: p.Time, X: p.X, Y: p.Y, Intensity: p.Intensity,
			})
		}
		for _, p := range t.HeatMap {
			pt.HeatMap = append(pt.HeatMap, models.PositionSample{
				Timestamp: p.Time, X: p.X, Y: p.Y, Intensity: p.Intensity,
			})
		}
		for _, m := range t.Moments {
			pt.Moments = append(pt.Moments, toKeyMoment(m))
		}
		out = append(out, pt)
	}
	return out
}

func toTacticalEvents(events []rawTacticalEvent) []models.TacticalEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]models.TacticalEvent, 0, len(events))
	for _, e := range events {
		out = append(out, models.TacticalEvent{Timestamp: e.Time, Description: e.Detail})
	}
	return out
}

func toSplit(s *rawSplit) *models.StatSplit {
	if s == nil {
		return nil
	}
	return &models.StatSplit{Home: s.Home, Away: s.Away}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
