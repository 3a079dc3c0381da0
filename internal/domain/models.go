package domain

import "time"

// SessionStatus is the lifecycle phase of a quiz room.
type SessionStatus string

const (
	StatusWaiting     SessionStatus = "waiting"
	StatusInProgress  SessionStatus = "in_progress"
	StatusLeaderboard SessionStatus = "leaderboard"
	StatusFinished    SessionStatus = "finished"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool { return s == StatusFinished }

// VocabEntry is one term/translation pair from the vocabulary source.
type VocabEntry struct {
	ID          string `json:"id"`
	Term        string `json:"term"`
	Translation string `json:"translation"`
	Unit        string `json:"unit"`
	Level       string `json:"level"`
}

// Question is a multiple-choice question built from a vocab entry.
// Immutable once the session is created.
type Question struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	VocabID       string   `json:"vocabId"`
}

// AnswerResult summarizes the outcome of a submission for one player.
// It is cached on the player record so duplicate submissions replay it.
type AnswerResult struct {
	QuestionIndex int  `json:"questionIndex"`
	Correct       bool `json:"correct"`
	ScoreDelta    int  `json:"scoreDelta"`
	Score         int  `json:"score"`
	Streak        int  `json:"streak"`
}

// Player is one participant's scoring state within a session.
type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Streak   int    `json:"streak"`
	// LastAnsweredIndex is -1 until the player answers their first question.
	LastAnsweredIndex int           `json:"lastAnsweredIndex"`
	LastResult        *AnswerResult `json:"lastResult,omitempty"`
	JoinedAt          time.Time     `json:"joinedAt"`
}

// Session is the complete state of one quiz run, identified by room code.
// It is the sole shared mutable document; all mutations go through the
// store adapter's transactional update.
type Session struct {
	RoomCode string        `json:"roomCode"`
	HostID   string        `json:"hostId"`
	Status   SessionStatus `json:"status"`
	// CurrentQuestionIndex is -1 while waiting, then monotonically
	// non-decreasing and frozen once finished.
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	Questions            []Question         `json:"questions"`
	Players              map[string]*Player `json:"players"`
	Unit                 string             `json:"unit"`
	Level                string             `json:"level"`
	TimePerQuestionSec   int                `json:"timePerQuestionSec"`
	QuestionStartedAt    time.Time          `json:"questionStartedAt"`
	CreatedAt            time.Time          `json:"createdAt"`
}

// Live reports whether the session still claims its room code.
func (s *Session) Live() bool { return s.Status != StatusFinished }

// CurrentQuestion returns the active question, or false when no question
// is in play (waiting, finished, or index out of range).
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// Deadline is the authoritative cutoff for answering the active question.
func (s *Session) Deadline() time.Time {
	return s.QuestionStartedAt.Add(time.Duration(s.TimePerQuestionSec) * time.Second)
}

// Clone returns a deep copy so transaction callbacks can mutate freely
// without aliasing the stored document.
func (s *Session) Clone() *Session {
	out := *s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		out.Questions[i] = q
	}
	out.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		cp := *p
		if p.LastResult != nil {
			res := *p.LastResult
			cp.LastResult = &res
		}
		out.Players[id] = &cp
	}
	return &out
}

// RankedPlayer is one row of a computed leaderboard.
type RankedPlayer struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
	Streak   int    `json:"streak"`
}
