package identity

import (
	"sync"

	"github.com/teslashibe/go-vigia/pkg/vote"
)

// MatcherConfig holds the voting parameters.
type MatcherConfig struct {
	Window        int     `yaml:"window"`         // Frames of best-match history
	Threshold     int     `yaml:"threshold"`      // Votes a new majority needs before the display switches
	TopK          int     `yaml:"top_k"`          // Matches shown per selection
	LowConfidence float64 `yaml:"low_confidence"` // Scores below this are flagged, not hidden
}

// DefaultMatcherConfig returns the voting parameters used on the rig.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		Window:        vote.DefaultCapacity,
		Threshold:     8,
		TopK:          4,
		LowConfidence: 0.45,
	}
}

// Match is one ranked candidate.
type Match struct {
	Index         int     `json:"index"`
	Record        Record  `json:"record"`
	Score         float64 `json:"score"`
	LowConfidence bool    `json:"low_confidence"`
}

// Selection is the displayed top-K ranking.
type Selection struct {
	Matches []Match `json:"matches"`
}

// Top returns the first match of the selection.
func (s Selection) Top() (Match, bool) {
	if len(s.Matches) == 0 {
		return Match{}, false
	}
	return s.Matches[0], true
}

// Result describes one observation.
type Result struct {
	Best      int       `json:"best"`       // argmax for this frame
	BestScore float64   `json:"best_score"` // similarity of Best
	Majority  int       `json:"majority"`   // majority element of the history
	Votes     int       `json:"votes"`      // its count
	Changed   bool      `json:"changed"`    // the displayed selection was replaced
	Selection Selection `json:"selection"`  // currently displayed selection
}

// Matcher stabilizes per-frame identity matches with a majority vote over a
// bounded history and a sticky displayed selection.
type Matcher struct {
	mu      sync.Mutex
	config  MatcherConfig
	history *vote.Window[int]
	display *vote.Sticky[int, Selection]
	db      *Database
}

// NewMatcher creates a matcher with the given configuration.
func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{
		config:  cfg,
		history: vote.NewWindow[int](cfg.Window),
		display: vote.NewSticky[int, Selection](cfg.Threshold),
	}
}

// Observe matches emb against db and updates history and selection.
// It returns false when there is nothing to compare against.
func (m *Matcher) Observe(emb []float32, db *Database) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if db.Len() == 0 || len(emb) == 0 {
		return Result{}, false
	}
	if db != m.db {
		// Indices of a previous snapshot mean nothing in the new one
		m.history.Reset()
		m.display.Reset()
		m.db = db
	}

	sims := db.Similarities(emb)
	ranked := Ranked(sims, 0)
	best := ranked[0]
	m.history.Push(best)

	majority, votes, _ := m.history.Majority()
	changed := m.display.Offer(majority, votes, m.selection(db, sims, ranked))

	_, sel, _ := m.display.Current()
	return Result{
		Best:      best,
		BestScore: sims[best],
		Majority:  majority,
		Votes:     votes,
		Changed:   changed,
		Selection: sel,
	}, true
}

func (m *Matcher) selection(db *Database, sims []float64, ranked []int) Selection {
	k := m.config.TopK
	if k <= 0 || k > len(ranked) {
		k = len(ranked)
	}
	sel := Selection{Matches: make([]Match, k)}
	for i, idx := range ranked[:k] {
		sel.Matches[i] = Match{
			Index:         idx,
			Record:        db.Record(idx),
			Score:         sims[idx],
			LowConfidence: sims[idx] < m.config.LowConfidence,
		}
	}
	return sel
}

// Clear drops the vote history. Called on frames without a face so an old
// encounter cannot vote in the next one. The displayed selection is kept.
func (m *Matcher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Reset()
}

// Selection returns the displayed selection.
func (m *Matcher) Selection() (Selection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, sel, ok := m.display.Current()
	return sel, ok
}

// HistoryLen returns the number of votes currently held.
func (m *Matcher) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Len()
}
