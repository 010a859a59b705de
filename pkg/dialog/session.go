// Package dialog orchestrates one spoken exchange end to end: transcribe the
// user's utterance, stream an LLM reply, cut it into sentences and synthesize
// each one, while staying interruptible at every stage.
package dialog

import (
	"sync"

	"github.com/google/uuid"

	"github.com/voxline/voxline/pkg/engine"
)

// Supported language overrides.
const (
	LanguageAuto    = "auto"
	LanguageEnglish = "en"
	LanguageTurkish = "tr"
)

const (
	systemPromptEN = "You are a helpful AI assistant. Speak ONLY ENGLISH. Keep answers concise but informative (2-3 sentences)."
	systemPromptTR = "Sen yardımsever bir yapay zeka asistanısın. SADECE TÜRKÇE konuş. Cevapların öz ama bilgilendirici olsun (2-3 cümle)."

	// defaultMaxHistory caps conversation history at this many messages,
	// trimmed oldest-first in user/assistant pairs.
	defaultMaxHistory = 20
)

// Session holds per-connection conversational state: the language override
// and the capped exchange history. Safe for concurrent use; the config
// handler mutates language while the pipeline reads it.
type Session struct {
	ID string

	mu         sync.RWMutex
	language   string
	history    []engine.Message
	maxHistory int
}

// NewSession creates a session with the given initial language
// (auto, en or tr; anything else falls back to en).
func NewSession(language string) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		maxHistory: defaultMaxHistory,
	}
	s.SetLanguage(language)
	return s
}

// SetLanguage updates the language override. Unknown codes are ignored.
func (s *Session) SetLanguage(lang string) {
	switch lang {
	case LanguageAuto, LanguageEnglish, LanguageTurkish:
	default:
		return
	}
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
}

// Language returns the current language override.
func (s *Session) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.language == "" {
		return LanguageEnglish
	}
	return s.language
}

// SystemPrompt returns the assistant prompt for the current language.
func (s *Session) SystemPrompt() string {
	if s.Language() == LanguageTurkish {
		return systemPromptTR
	}
	return systemPromptEN
}

// Messages builds the LLM request for one user utterance: system prompt,
// capped history, then the new user message.
func (s *Session) Messages(userText string) []engine.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prompt := systemPromptEN
	if s.language == LanguageTurkish {
		prompt = systemPromptTR
	}

	messages := make([]engine.Message, 0, len(s.history)+2)
	messages = append(messages, engine.Message{Role: engine.RoleSystem, Content: prompt})
	messages = append(messages, s.history...)
	messages = append(messages, engine.Message{Role: engine.RoleUser, Content: userText})
	return messages
}

// AppendExchange records one completed user/assistant pair, trimming the
// oldest pair when the cap is exceeded.
func (s *Session) AppendExchange(userText, replyText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history,
		engine.Message{Role: engine.RoleUser, Content: userText},
		engine.Message{Role: engine.RoleAssistant, Content: replyText},
	)
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
}

// HistoryLen returns the number of stored history messages.
func (s *Session) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
