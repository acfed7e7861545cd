package responder

import (
	"math/rand/v2"
	"strings"

	"phrasebot/pkg/bus"
	"phrasebot/pkg/config"
)

type DecisionKind string

const (
	DecisionCommand   DecisionKind = "command"
	DecisionKeyPhrase DecisionKind = "key_phrase"
	DecisionFallback  DecisionKind = "fallback"
)

// Decision is the routing verdict for one inbound message.
//
// Exactly one kind applies per message; NotifyOwner is set only for key-phrase
// matches. MatchedPhrase carries the configured phrase that fired.
type Decision struct {
	Kind          DecisionKind
	Reply         string
	MatchedPhrase string
	NotifyOwner   bool
}

// Selector routes message text to a decision.
//
// Selection is deterministic except the fallback pick, which draws uniformly
// from the configured fallback replies.
type Selector struct {
	cfg  config.ResponderConfig
	intn func(int) int
}

func NewSelector(cfg config.ResponderConfig) *Selector {
	return &Selector{cfg: cfg, intn: rand.IntN}
}

// Select applies the routing rules in priority order: exact command token,
// then key phrases in configured order (first match wins), then a random
// fallback reply.
func (s *Selector) Select(msg bus.InboundMessage) Decision {
	if name, ok := commandToken(msg.Content); ok {
		if response, known := s.cfg.Commands[name]; known {
			return Decision{Kind: DecisionCommand, Reply: response}
		}
	}

	for _, entry := range s.cfg.KeyPhrases {
		if containsPhrase(msg.Content, entry.Phrase, entry.CaseSensitive) {
			return Decision{
				Kind:          DecisionKeyPhrase,
				Reply:         entry.Reply,
				MatchedPhrase: entry.Phrase,
				NotifyOwner:   true,
			}
		}
	}

	return Decision{
		Kind:  DecisionFallback,
		Reply: s.cfg.FallbackReplies[s.intn(len(s.cfg.FallbackReplies))],
	}
}

// commandToken extracts a command name from text of the form "/name" or
// "/name@botname". Text with arguments or without the slash prefix is not a
// command and falls through to phrase matching.
func commandToken(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}
	if strings.ContainsAny(trimmed, " \t\n") {
		return "", false
	}

	name, _, _ := strings.Cut(strings.TrimPrefix(trimmed, "/"), "@")
	if name == "" {
		return "", false
	}

	return strings.ToLower(name), true
}

// containsPhrase tests substring containment, folding both sides to lower
// case unless the phrase is configured case-sensitive.
func containsPhrase(text, phrase string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(text, phrase)
	}

	return strings.Contains(strings.ToLower(text), strings.ToLower(phrase))
}
