package responder

import (
	"testing"

	"phrasebot/pkg/bus"
	"phrasebot/pkg/config"
)

func testResponderConfig() config.ResponderConfig {
	return config.ResponderConfig{
		KeyPhrases: []config.KeyPhrase{
			{Phrase: "support", Reply: "We'll help!"},
			{Phrase: "Hello", CaseSensitive: true, Reply: "Exact hello"},
		},
		FallbackReplies: []string{"Hi!", "Hey!", "What?"},
		Commands: map[string]string{
			"start": "Welcome!",
			"help":  "Here is help.",
		},
	}
}

func inbound(text string) bus.InboundMessage {
	return bus.InboundMessage{Channel: "telegram", SenderID: "u1", ChatID: "c1", Content: text}
}

func TestSelectCommandExactMatch(t *testing.T) {
	t.Parallel()

	selector := NewSelector(testResponderConfig())

	decision := selector.Select(inbound("/start"))
	if decision.Kind != DecisionCommand {
		t.Fatalf("kind = %q, want %q", decision.Kind, DecisionCommand)
	}
	if decision.Reply != "Welcome!" {
		t.Fatalf("reply = %q, want %q", decision.Reply, "Welcome!")
	}
	if decision.NotifyOwner {
		t.Fatal("command decision must not notify owner")
	}
}

func TestSelectCommandWithBotSuffix(t *testing.T) {
	t.Parallel()

	selector := NewSelector(testResponderConfig())

	decision := selector.Select(inbound("/help@phrasebot"))
	if decision.Kind != DecisionCommand {
		t.Fatalf("kind = %q, want %q", decision.Kind, DecisionCommand)
	}
	if decision.Reply != "Here is help." {
		t.Fatalf("reply = %q, want %q", decision.Reply, "Here is help.")
	}
}

func TestSelectCommandTakesPriorityOverKeyPhrase(t *testing.T) {
	t.Parallel()

	cfg := testResponderConfig()
	cfg.KeyPhrases = append([]config.KeyPhrase{{Phrase: "start", Reply: "phrase reply"}}, cfg.KeyPhrases...)
	selector := NewSelector(cfg)

	decision := selector.Select(inbound("/start"))
	if decision.Kind != DecisionCommand {
		t.Fatalf("kind = %q, want command precedence over key phrase", decision.Kind)
	}
}

func TestSelectUnknownCommandFallsThrough(t *testing.T) {
	t.Parallel()

	cfg := testResponderConfig()
	cfg.KeyPhrases = []config.KeyPhrase{{Phrase: "reset", Reply: "phrase reply"}}
	selector := NewSelector(cfg)

	decision := selector.Select(inbound("/reset"))
	if decision.Kind != DecisionKeyPhrase {
		t.Fatalf("kind = %q, want unknown command treated as ordinary text", decision.Kind)
	}
	if decision.Reply != "phrase reply" {
		t.Fatalf("reply = %q, want %q", decision.Reply, "phrase reply")
	}
}

func TestSelectCommandWithArgumentsIsOrdinaryText(t *testing.T) {
	t.Parallel()

	selector := NewSelector(testResponderConfig())

	decision := selector.Select(inbound("/start now please"))
	if decision.Kind != DecisionFallback {
		t.Fatalf("kind = %q, want fallback for command with arguments", decision.Kind)
	}
}

func TestSelectKeyPhraseSubstringCaseInsensitive(t *testing.T) {
	t.Parallel()

	selector := NewSelector(testResponderConfig())

	decision := selector.Select(inbound("I need SUPPORT please"))
	if decision.Kind != DecisionKeyPhrase {
		t.Fatalf("kind = %q, want %q", decision.Kind, DecisionKeyPhrase)
	}
	if decision.Reply != "We'll help!" {
		t.Fatalf("reply = %q, want %q", decision.Reply, "We'll help!")
	}
	if decision.MatchedPhrase != "support" {
		t.Fatalf("matched phrase = %q, want %q", decision.MatchedPhrase, "support")
	}
	if !decision.NotifyOwner {
		t.Fatal("key-phrase decision must notify owner")
	}
}

func TestSelectKeyPhraseCaseSensitive(t *testing.T) {
	t.Parallel()

	selector := NewSelector(testResponderConfig())

	decision := selector.Select(inbound("hello world"))
	if decision.Kind != DecisionFallback {
		t.Fatalf("kind = %q, want no match for wrong case", decision.Kind)
	}

	decision = selector.Select(inbound("Hello world"))
	if decision.Kind != DecisionKeyPhrase {
		t.Fatalf("kind = %q, want case-sensitive match", decision.Kind)
	}
	if decision.Reply != "Exact hello" {
		t.Fatalf("reply = %q, want %q", decision.Reply, "Exact hello")
	}
}

func TestSelectFirstMatchingPhraseWins(t *testing.T) {
	t.Parallel()

	cfg := testResponderConfig()
	cfg.KeyPhrases = []config.KeyPhrase{
		{Phrase: "help me", Reply: "first"},
		{Phrase: "help", Reply: "second"},
	}
	selector := NewSelector(cfg)

	decision := selector.Select(inbound("please help me out"))
	if decision.Reply != "first" {
		t.Fatalf("reply = %q, want earliest configured phrase to win", decision.Reply)
	}

	cfg.KeyPhrases = []config.KeyPhrase{
		{Phrase: "help", Reply: "second"},
		{Phrase: "help me", Reply: "first"},
	}
	selector = NewSelector(cfg)

	decision = selector.Select(inbound("please help me out"))
	if decision.Reply != "second" {
		t.Fatalf("reply = %q, want earliest configured phrase to win", decision.Reply)
	}
}

func TestSelectFallbackIsConfiguredReply(t *testing.T) {
	t.Parallel()

	cfg := testResponderConfig()
	selector := NewSelector(cfg)

	candidates := make(map[string]struct{}, len(cfg.FallbackReplies))
	for _, reply := range cfg.FallbackReplies {
		candidates[reply] = struct{}{}
	}

	for range 50 {
		decision := selector.Select(inbound("nothing interesting here"))
		if decision.Kind != DecisionFallback {
			t.Fatalf("kind = %q, want %q", decision.Kind, DecisionFallback)
		}
		if _, ok := candidates[decision.Reply]; !ok {
			t.Fatalf("fallback reply %q not in configured list", decision.Reply)
		}
		if decision.NotifyOwner {
			t.Fatal("fallback decision must not notify owner")
		}
	}
}

func TestSelectFallbackPickIsUniformOverIndexes(t *testing.T) {
	t.Parallel()

	cfg := testResponderConfig()
	selector := NewSelector(cfg)

	next := 0
	selector.intn = func(n int) int {
		if n != len(cfg.FallbackReplies) {
			t.Fatalf("intn bound = %d, want %d", n, len(cfg.FallbackReplies))
		}
		pick := next
		next = (next + 1) % n
		return pick
	}

	for i := range cfg.FallbackReplies {
		decision := selector.Select(inbound("no match"))
		if decision.Reply != cfg.FallbackReplies[i] {
			t.Fatalf("reply = %q, want %q", decision.Reply, cfg.FallbackReplies[i])
		}
	}
}

func TestSelectEmptyTextResolvesToFallback(t *testing.T) {
	t.Parallel()

	selector := NewSelector(testResponderConfig())

	decision := selector.Select(inbound(""))
	if decision.Kind != DecisionFallback {
		t.Fatalf("kind = %q, want fallback for empty text", decision.Kind)
	}
}

func TestCommandToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		name string
		ok   bool
	}{
		{"/start", "start", true},
		{"/START", "start", true},
		{"/help@phrasebot", "help", true},
		{" /start ", "start", true},
		{"/start now", "", false},
		{"start", "", false},
		{"/", "", false},
		{"/@phrasebot", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		name, ok := commandToken(tc.text)
		if ok != tc.ok || name != tc.name {
			t.Fatalf("commandToken(%q) = (%q, %v), want (%q, %v)", tc.text, name, ok, tc.name, tc.ok)
		}
	}
}
