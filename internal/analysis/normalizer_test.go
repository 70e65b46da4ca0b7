package analysis

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/pitchside/video-pipeline/pkg/models"
)

const matchResponse = `{
	"summary": "Tight derby decided late.",
	"insights": ["High press worked", "Wide overloads"],
	"performance_rating": 7.5,
	"events": [
		{"time": 120, "type": "Shot", "detail": "Long-range effort", "confidence": 0.8, "players": ["Diaz"], "zone": "attacking third", "outcome": "saved"},
		{"time": 360, "type": "Pass", "detail": "Through ball", "confidence": 0.9, "players": ["Okafor", "Diaz"]},
		{"time": 2700, "type": "Goal", "detail": "Header from corner", "confidence": 0.95, "players": ["Okafor"], "outcome": "goal"}
	],
	"key_moments": [
		{"time": 2700, "type": "Goal", "detail": "Winning goal", "importance": "critical", "players": ["Okafor"]}
	],
	"player_stats": [
		{"name": "Okafor", "position": "FW", "rating": 8.2, "actions": {"shots": 3}}
	],
	"timeline": [{"minute": 45, "label": "first half", "events": 12}]
}`

func TestNormalizeMatch(t *testing.T) {
	data, err := Normalize(models.TypeMatch, json.RawMessage(matchResponse))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(data.PlayerActions) != 3 {
		t.Errorf("PlayerActions length = %d, want 3", len(data.PlayerActions))
	}
	if len(data.KeyMoments) != 1 {
		t.Errorf("KeyMoments length = %d, want 1", len(data.KeyMoments))
	}
	if data.KeyMoments[0].Importance != models.ImportanceCritical {
		t.Errorf("KeyMoments[0].Importance = %q, want critical", data.KeyMoments[0].Importance)
	}
	if data.PlayerActions[0].Action != "Shot" || data.PlayerActions[0].Outcome != "saved" {
		t.Errorf("PlayerActions[0] = %+v, want Shot/saved", data.PlayerActions[0])
	}
	if data.Summary != "Tight derby decided late." {
		t.Errorf("Summary = %q", data.Summary)
	}
	if len(data.PlayerStats) != 1 || data.PlayerStats[0].Rating != 8.2 {
		t.Errorf("PlayerStats = %+v", data.PlayerStats)
	}
	if len(data.Timeline) != 1 || data.Timeline[0].Minute != 45 {
		t.Errorf("Timeline = %+v", data.Timeline)
	}
}

func TestNormalizeTrainingAveragesSkills(t *testing.T) {
	raw := json.RawMessage(`{
		"players": [
			{"name": "A", "skills": {"technical": 7, "physical": 8, "tactical": 6}},
			{"name": "B", "skills": {"technical": 9, "physical": 8, "tactical": 8}},
			{"name": "C", "skills": {"technical": 5, "physical": 6, "tactical": 7}},
			{"name": "D", "skills": {"technical": 10, "physical": 9, "tactical": 8}}
		],
		"key_learnings": ["Pressing shape improved", "Set-piece routine needs work"]
	}`)

	data, err := Normalize(models.TypeTraining, raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(data.PlayerStats) != 4 {
		t.Fatalf("PlayerStats length = %d, want 4", len(data.PlayerStats))
	}

	wantRatings := []float64{7, 25.0 / 3, 6, 9}
	for i, want := range wantRatings {
		got := data.PlayerStats[i].Rating
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("PlayerStats[%d].Rating = %v, want %v", i, got, want)
		}
	}

	// Key learnings become moments with synthesized, evenly spaced
	// timestamps.
	if len(data.KeyMoments) != 2 {
		t.Fatalf("KeyMoments length = %d, want 2", len(data.KeyMoments))
	}
	if data.KeyMoments[0].Timestamp != 0 || data.KeyMoments[1].Timestamp != TrainingMomentInterval {
		t.Errorf("synthesized timestamps = %v, %v", data.KeyMoments[0].Timestamp, data.KeyMoments[1].Timestamp)
	}

	// No event timeline for training footage.
	if len(data.PlayerActions) != 0 {
		t.Errorf("PlayerActions length = %d, want 0", len(data.PlayerActions))
	}
}

func TestNormalizeHighlightImportance(t *testing.T) {
	raw := json.RawMessage(`{
		"moments": [
			{"time": 10, "title": "Bicycle kick", "detail": "Stunning finish", "skill_level": 9, "players": ["Diaz"]},
			{"time": 40, "title": "Nutmeg", "detail": "Skill move", "skill_level": 6, "players": ["Okafor"]}
		]
	}`)

	data, err := Normalize(models.TypeHighlight, raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	// Each moment doubles as an action and a key moment.
	if len(data.PlayerActions) != 2 || len(data.KeyMoments) != 2 {
		t.Fatalf("actions/moments = %d/%d, want 2/2", len(data.PlayerActions), len(data.KeyMoments))
	}
	if data.KeyMoments[0].Importance != models.ImportanceHigh {
		t.Errorf("skill 9 importance = %q, want high", data.KeyMoments[0].Importance)
	}
	if data.KeyMoments[1].Importance != models.ImportanceMedium {
		t.Errorf("skill 6 importance = %q, want medium", data.KeyMoments[1].Importance)
	}
	if data.PlayerActions[0].Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", data.PlayerActions[0].Confidence)
	}
}

func TestNormalizeInterviewQuotes(t *testing.T) {
	raw := json.RawMessage(`{
		"quotes": [
			{"text": "We never stopped believing", "speaker": "Coach Bell", "time": 30, "importance": "high"},
			{"text": "The pitch was heavy", "speaker": "Diaz", "time": 90, "importance": "medium"},
			{"text": "Next week we go again", "speaker": "Diaz", "time": 150, "importance": "low"}
		]
	}`)

	data, err := Normalize(models.TypeInterview, raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(data.PlayerActions) != 3 {
		t.Fatalf("PlayerActions length = %d, want 3", len(data.PlayerActions))
	}
	wantConfidence := []float64{0.9, 0.7, 0.5}
	for i, want := range wantConfidence {
		a := data.PlayerActions[i]
		if a.Action != "Quote" {
			t.Errorf("PlayerActions[%d].Action = %q, want Quote", i, a.Action)
		}
		if a.Confidence != want {
			t.Errorf("PlayerActions[%d].Confidence = %v, want %v", i, a.Confidence, want)
		}
		if len(a.Players) != 1 {
			t.Errorf("PlayerActions[%d].Players = %v, want single speaker", i, a.Players)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	// Empty response: collections come back empty (not nil) and
	// summary/recommendations get placeholders.
	data, err := Normalize(models.TypeMatch, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if data.PlayerActions == nil || data.KeyMoments == nil || data.Insights == nil {
		t.Error("collections must be non-nil")
	}
	if data.Summary != PlaceholderSummary {
		t.Errorf("Summary = %q, want placeholder", data.Summary)
	}
	if len(data.Recommendations) == 0 {
		t.Error("Recommendations must get a placeholder")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	first, err := Normalize(models.TypeMatch, json.RawMessage(matchResponse))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	second, err := Normalize(models.TypeMatch, json.RawMessage(matchResponse))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Normalize() must be a pure function of its inputs")
	}
}

func TestNormalizeUnknownType(t *testing.T) {
	if _, err := Normalize(models.VideoType("podcast"), json.RawMessage(`{}`)); err == nil {
		t.Error("Normalize() expected error for unknown video type")
	}
}

func TestNormalizeMalformedResponse(t *testing.T) {
	if _, err := Normalize(models.TypeMatch, json.RawMessage(`not json`)); err == nil {
		t.Error("Normalize() expected error for malformed response")
	}
}

func TestSeekTimestampClamps(t *testing.T) {
	tests := []struct {
		ts, duration, want float64
	}{
		{-5, 100, 0},
		{50, 100, 50},
		{150, 100, 100},
		{150, 0, 150}, // unknown duration: no upper clamp
	}
	for _, tt := range tests {
		if got := models.SeekTimestamp(tt.ts, tt.duration); got != tt.want {
			t.Errorf("SeekTimestamp(%v, %v) = %v, want %v", tt.ts, tt.duration, got, tt.want)
		}
	}
}
