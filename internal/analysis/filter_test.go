package analysis

import (
	"reflect"
	"testing"

	"github.com/pitchside/video-pipeline/pkg/models"
)

var testActions = []models.PlayerAction{
	{Timestamp: 10, Action: "Shot", Description: "Long-range shot", Players: []string{"Diaz"}, Outcome: "saved"},
	{Timestamp: 20, Action: "Pass", Description: "Through ball to Diaz", Players: []string{"Okafor"}},
	{Timestamp: 30, Action: "Shot", Description: "Header", Players: []string{"Okafor"}, Outcome: "goal"},
}

var testMoments = []models.KeyMoment{
	{Timestamp: 10, Type: "Goal", Description: "Opening goal", Importance: models.ImportanceHigh, Players: []string{"Okafor"}},
	{Timestamp: 20, Type: "Quote", Description: "Post-match reaction", Quote: "We never stopped believing", Importance: models.ImportanceMedium, Players: []string{"Coach Bell"}},
	{Timestamp: 30, Type: "Save", Description: "Double save", Importance: models.ImportanceCritical, Players: []string{"Mora"}},
}

func TestFilterActionsEmptySpec(t *testing.T) {
	got := FilterActions(testActions, FilterSpec{})
	if !reflect.DeepEqual(got, testActions) {
		t.Error("empty spec must return the input unchanged")
	}
}

func TestFilterActions(t *testing.T) {
	tests := []struct {
		name string
		spec FilterSpec
		want []float64 // expected timestamps, in order
	}{
		{"by type", FilterSpec{Type: "shot"}, []float64{10, 30}},
		{"by text", FilterSpec{Query: "header"}, []float64{30}},
		{"by player", FilterSpec{Player: "okafor"}, []float64{20, 30}},
		{"by status", FilterSpec{Status: "goal"}, []float64{30}},
		{"combined AND", FilterSpec{Type: "Shot", Player: "Diaz"}, []float64{10}},
		{"no match", FilterSpec{Type: "Shot", Status: "missed"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterActions(testActions, tt.spec)
			var ts []float64
			for _, a := range got {
				ts = append(ts, a.Timestamp)
			}
			if !reflect.DeepEqual(ts, tt.want) {
				t.Errorf("FilterActions() timestamps = %v, want %v", ts, tt.want)
			}
		})
	}
}

func TestFilterMoments(t *testing.T) {
	tests := []struct {
		name string
		spec FilterSpec
		want []float64
	}{
		{"by type", FilterSpec{Type: "goal"}, []float64{10}},
		{"text matches quote", FilterSpec{Query: "believing"}, []float64{20}},
		{"text matches participant", FilterSpec{Query: "mora"}, []float64{30}},
		{"by importance", FilterSpec{Status: "critical"}, []float64{30}},
		{"by player", FilterSpec{Player: "coach bell"}, []float64{20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterMoments(testMoments, tt.spec)
			var ts []float64
			for _, m := range got {
				ts = append(ts, m.Timestamp)
			}
			if !reflect.DeepEqual(ts, tt.want) {
				t.Errorf("FilterMoments() timestamps = %v, want %v", ts, tt.want)
			}
		})
	}
}

func TestFilterPreservesRelativeOrder(t *testing.T) {
	got := FilterActions(testActions, FilterSpec{Type: "Shot"})
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp < got[i-1].Timestamp {
			t.Error("filtered result must preserve input order")
		}
	}
}

func TestFilterMomentsEmptySpec(t *testing.T) {
	got := FilterMoments(testMoments, FilterSpec{})
	if !reflect.DeepEqual(got, testMoments) {
		t.Error("empty spec must return the input unchanged")
	}
}
