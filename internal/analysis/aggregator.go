package analysis

import (
	"sort"

	"github.com/pitchside/video-pipeline/pkg/models"
)

// AggregateMoments returns the canonical key moments, or, when that list
// is empty, derives one by flattening the moments embedded in per-player
// tracking entries, sorted by timestamp ascending with consecutive
// duplicate timestamps dropped (first occurrence kept).
//
// This is a fallback path only: a non-empty canonical list is returned
// unchanged.
func AggregateMoments(data *models.AnalysisData) []models.KeyMoment {
	if data == nil {
		return []models.KeyMoment{}
	}
	if len(data.KeyMoments) > 0 {
		return data.KeyMoments
	}

	var flat []models.KeyMoment
	for _, pt := range data.PlayerTracking {
		flat = append(flat, pt.Moments...)
	}
	if len(flat) == 0 {
		return []models.KeyMoment{}
	}

	sort.SliceStable(flat, func(i, j int) bool {
		return flat[i].Timestamp < flat[j].Timestamp
	})

	deduped := flat[:1]
	for _, m := range flat[1:] {
		if m.Timestamp == deduped[len(deduped)-1].Timestamp {
			continue
		}
		deduped = append(deduped, m)
	}
	return deduped
}

// AggregateActions returns the canonical player actions, or, when that
// list is empty, derives one from the aggregated tracking moments.
func AggregateActions(data *models.AnalysisData) []models.PlayerAction {
	if data == nil {
		return []models.PlayerAction{}
	}
	if len(data.PlayerActions) > 0 {
		return data.PlayerActions
	}

	moments := AggregateMoments(data)
	actions := make([]models.PlayerAction, 0, len(moments))
	for _, m := range moments {
		actions = append(actions, models.PlayerAction{
			Timestamp:   m.Timestamp,
			Action:      m.Type,
			Description: m.Description,
			Confidence:  importanceConfidence(m.Importance),
			Players:     nonNil(m.Players),
		})
	}
	return actions
}
