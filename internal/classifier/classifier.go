// Package classifier infers the sport of a video from team configuration
// or, failing that, its textual content.
package classifier

import "strings"

// Sport is one label from the fixed sport enumeration.
type Sport string

const (
	Football   Sport = "football"
	Basketball Sport = "basketball"
	Rugby      Sport = "rugby"
	Tennis     Sport = "tennis"
	Volleyball Sport = "volleyball"
	Baseball   Sport = "baseball"
	Cricket    Sport = "cricket"
	Hockey     Sport = "hockey"
	Golf       Sport = "golf"
	Swimming   Sport = "swimming"
	Athletics  Sport = "athletics"
)

// DefaultSport is returned when no signal matches.
const DefaultSport = Football

// synonyms maps declared team sports onto canonical labels.
var synonyms = map[string]Sport{
	"soccer":               Football,
	"football":             Football,
	"association football": Football,
	"basketball":           Basketball,
	"rugby":                Rugby,
	"rugby union":          Rugby,
	"rugby league":         Rugby,
	"tennis":               Tennis,
	"volleyball":           Volleyball,
	"baseball":             Baseball,
	"cricket":              Cricket,
	"hockey":               Hockey,
	"ice hockey":           Hockey,
	"field hockey":         Hockey,
	"golf":                 Golf,
	"swimming":             Swimming,
	"athletics":            Athletics,
	"track and field":      Athletics,
}

// keywordRule tests one sport's keyword set against video text.
type keywordRule struct {
	sport    Sport
	keywords []string
}

// contentRules is ordered: the first sport whose keyword set matches
// wins, so identical input always yields the same sport even when
// several sets would match.
var contentRules = []keywordRule{
	{Basketball, []string{"basketball", "dunk", "three-pointer", "free throw", "nba", "rebound"}},
	{Rugby, []string{"rugby", "scrum", "lineout", "try line", "ruck", "maul"}},
	{Tennis, []string{"tennis", "forehand", "backhand", "ace", "deuce", "tiebreak"}},
	{Volleyball, []string{"volleyball", "spike", "dig", "setter", "block touch"}},
	{Baseball, []string{"baseball", "home run", "inning", "pitcher", "strikeout"}},
	{Cricket, []string{"cricket", "wicket", "batsman", "bowler", "over rate", "innings"}},
	{Hockey, []string{"hockey", "puck", "face-off", "power play", "slapshot"}},
	{Golf, []string{"golf", "birdie", "bogey", "fairway", "putt", "tee shot"}},
	{Swimming, []string{"swimming", "freestyle", "butterfly", "breaststroke", "backstroke", "lap time"}},
	{Athletics, []string{"athletics", "sprint", "relay", "hurdles", "long jump", "marathon"}},
	{Football, []string{"football", "soccer", "goal", "penalty", "free kick", "offside", "corner kick"}},
}

// Input carries the classification signals for one video. TeamSport is
// the owning team's declared sport and, when recognized, is
// authoritative over the content fields.
type Input struct {
	TeamSport   string
	Title       string
	Description string
	Tags        []string
}

// Classify returns the sport for the given input. It never fails: an
// unrecognized team sport falls through to content-based detection, and
// no content match falls back to the default.
func Classify(in Input) Sport {
	if s, ok := synonyms[strings.ToLower(strings.TrimSpace(in.TeamSport))]; ok {
		return s
	}

	text := strings.ToLower(in.Title + " " + in.Description + " " + strings.Join(in.Tags, " "))
	for _, rule := range contentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.sport
			}
		}
	}

	return DefaultSport
}
