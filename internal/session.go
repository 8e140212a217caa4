package internal

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Turn is one utterance inside a session transcript.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

// Session is the explicit per-conversation context passed to component
// calls. Nothing in the engine holds a "current session" globally, so
// concurrent sessions do not interfere.
type Session struct {
	ID        string
	StartedAt time.Time
	NotePath  string

	mu    sync.RWMutex
	title string
	turns []Turn
}

func NewSession() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		StartedAt: now,
	}
}

// DefaultNotePath is the timestamp name a session note carries until
// the namer picks a descriptive one.
func (s *Session) DefaultNotePath() string {
	return fmt.Sprintf("%s/Conversation_%s.md", ConversationsDir, s.StartedAt.Format("20060102_150405"))
}

func (s *Session) AddTurn(role Role, text string) {
	s.mu.Lock()
	s.turns = append(s.turns, Turn{Role: role, Text: text, At: time.Now()})
	s.mu.Unlock()
}

func (s *Session) UserTurns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, turn := range s.turns {
		if turn.Role == RoleUser {
			count++
		}
	}
	return count
}

// RecentUserTurns returns up to n most recent user texts, oldest first.
func (s *Session) RecentUserTurns(n int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var texts []string
	for _, turn := range s.turns {
		if turn.Role == RoleUser {
			texts = append(texts, turn.Text)
		}
	}
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	return texts
}

func (s *Session) Named() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title != ""
}

func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.title != "" {
		return s.title
	}
	return "Conversation " + s.StartedAt.Format("2006-01-02 15:04")
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

// Transcript renders the session as markdown role sections for the
// conversation note.
func (s *Session) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	title := s.title
	if title == "" {
		title = "Conversation " + s.StartedAt.Format("2006-01-02 15:04")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nStarted: %s\n\n## Conversation\n\n", title, s.StartedAt.Format("2006-01-02 15:04:05"))
	for _, turn := range s.turns {
		var label string
		switch turn.Role {
		case RoleUser:
			label = "User"
		case RoleAssistant:
			label = "Assistant"
		default:
			label = "System"
		}
		fmt.Fprintf(&b, "### %s (%s)\n\n%s\n\n", label, turn.At.Format("15:04:05"), turn.Text)
	}
	return b.String()
}
