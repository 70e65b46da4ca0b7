package analysis

import (
	"strings"

	"github.com/pitchside/video-pipeline/pkg/models"
)

// FilterSpec is a combinable set of criteria for browsing action and
// moment lists. Empty fields are ignored; supplied fields are combined
// with logical AND. An empty spec matches everything.
type FilterSpec struct {
	// Type matches the action label (for actions) or moment type
	// (for moments), case-insensitively.
	Type string
	// Query is a case-insensitive substring matched against the
	// description and, for moments, also the context quote and
	// participant names.
	Query string
	// Player matches a participant name, case-insensitively.
	Player string
	// Status matches the action outcome (for actions) or importance
	// (for moments), case-insensitively.
	Status string
}

// IsEmpty returns true when no criteria are supplied.
func (s FilterSpec) IsEmpty() bool {
	return s.Type == "" && s.Query == "" && s.Player == "" && s.Status == ""
}

// FilterActions returns the subsequence of actions matching all supplied
// criteria, preserving the input order. The full list is returned for an
// empty spec.
func FilterActions(actions []models.PlayerAction, spec FilterSpec) []models.PlayerAction {
	if spec.IsEmpty() {
		return actions
	}

	out := make([]models.PlayerAction, 0, len(actions))
	for _, a := range actions {
		if spec.Type != "" && !strings.EqualFold(a.Action, spec.Type) {
			continue
		}
		if spec.Query != "" && !containsFold(a.Description, spec.Query) {
			continue
		}
		if spec.Player != "" && !hasPlayer(a.Players, spec.Player) {
			continue
		}
		if spec.Status != "" && !strings.EqualFold(a.Outcome, spec.Status) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FilterMoments returns the subsequence of moments matching all supplied
// criteria, preserving the input order. Free text also matches the
// context quote and participant names.
func FilterMoments(moments []models.KeyMoment, spec FilterSpec) []models.KeyMoment {
	if spec.IsEmpty() {
		return moments
	}

	out := make([]models.KeyMoment, 0, len(moments))
	for _, m := range moments {
		if spec.Type != "" && !strings.EqualFold(m.Type, spec.Type) {
			continue
		}
		if spec.Query != "" && !momentMatchesQuery(m, spec.Query) {
			continue
		}
		if spec.Player != "" && !hasPlayer(m.Players, spec.Player) {
			continue
		}
		if spec.Status != "" && !strings.EqualFold(m.Importance, spec.Status) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func momentMatchesQuery(m models.KeyMoment, query string) bool {
	if containsFold(m.Description, query) || containsFold(m.Quote, query) {
		return true
	}
	for _, p := range m.Players {
		if containsFold(p, query) {
			return true
		}
	}
	return false
}

func hasPlayer(players []string, name string) bool {
	for _, p := range players {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
