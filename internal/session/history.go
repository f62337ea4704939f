package session

import (
	"strings"
	"time"

	"github.com/nemezida1337/rozatti-bitrix-bot-core-sub000/internal/signal"
)

// DefaultHistoryMaxTurns bounds the stored history when no limit is configured.
const DefaultHistoryMaxTurns = 40

// AppendTurn records a history turn. Turns with no normalizable text are
// skipped, and an exact repeat of the previous turn (same role, normalized
// text and message ID) is suppressed so webhook retries do not inflate the
// history. Oldest turns are dropped once maxTurns is exceeded.
// Returns true when a turn was stored.
func (s *Session) AppendTurn(role, text string, messageID int64, kind string, ts time.Time, maxTurns int) bool {
	normalized := signal.NormalizeText(text)
	if normalized == "" {
		return false
	}
	if maxTurns <= 0 {
		maxTurns = DefaultHistoryMaxTurns
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	if role == "" {
		role = RoleClient
	}

	turn := Turn{
		Role:           role,
		Text:           strings.TrimSpace(text),
		TextNormalized: normalized,
		MessageID:      messageID,
		Kind:           kind,
		Ts:             ts,
	}

	if n := len(s.History); n > 0 {
		last := s.History[n-1]
		if last.Role == turn.Role &&
			last.TextNormalized == turn.TextNormalized &&
			last.MessageID == turn.MessageID {
			return false
		}
	}

	s.History = append(s.History, turn)
	if over := len(s.History) - maxTurns; over > 0 {
		s.History = append(s.History[:0:0], s.History[over:]...)
	}
	return true
}

// LastTurnByRole returns the most recent turn with the given role and its
// index, or index -1 when none exists.
func (s *Session) LastTurnByRole(role string) (Turn, int) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == role {
			return s.History[i], i
		}
	}
	return Turn{}, -1
}
