package feedback

import (
	"errors"
	"testing"
)

func TestPositiveIsTerminal(t *testing.T) {
	var s State
	s, err := s.Like()
	if err != nil {
		t.Fatalf("Like failed: %v", err)
	}
	if s.Kind != Positive || !s.Terminal() {
		t.Fatalf("Expected terminal positive, got %s", s)
	}

	if _, err := s.Like(); !errors.Is(err, ErrTransition) {
		t.Errorf("Like after positive: expected ErrTransition, got %v", err)
	}
	if _, err := s.Dislike(); !errors.Is(err, ErrTransition) {
		t.Errorf("Dislike after positive: expected ErrTransition, got %v", err)
	}
	if _, err := s.Explain(ReasonOther); !errors.Is(err, ErrTransition) {
		t.Errorf("Explain after positive: expected ErrTransition, got %v", err)
	}
}

func TestNegativeWithReason(t *testing.T) {
	var s State
	s, err := s.Dislike()
	if err != nil {
		t.Fatalf("Dislike failed: %v", err)
	}
	if s.Kind != NegativeUnreasoned || s.Terminal() {
		t.Fatalf("Expected non-terminal negative, got %s", s)
	}

	if _, err := s.Like(); !errors.Is(err, ErrTransition) {
		t.Errorf("Like after dislike: expected ErrTransition, got %v", err)
	}

	s, err = s.Explain(ReasonPoorAdvice)
	if err != nil {
		t.Fatalf("Explain failed: %v", err)
	}
	if s.Kind != NegativeReasoned || s.Reason != ReasonPoorAdvice || !s.Terminal() {
		t.Fatalf("Expected terminal negative(poor-advice), got %s", s)
	}

	if _, err := s.Explain(ReasonOther); !errors.Is(err, ErrTransition) {
		t.Errorf("Second reason: expected ErrTransition, got %v", err)
	}
}

func TestExplainRequiresDislike(t *testing.T) {
	var s State
	if _, err := s.Explain(ReasonOther); !errors.Is(err, ErrTransition) {
		t.Errorf("Explain from unset: expected ErrTransition, got %v", err)
	}
}

func TestExplainRejectsUnknownReason(t *testing.T) {
	s, _ := State{}.Dislike()
	next, err := s.Explain("too salty")
	if err == nil {
		t.Fatal("Expected error for unknown reason")
	}
	if next != s {
		t.Errorf("State should be unchanged, got %s", next)
	}
}

func TestParseReason(t *testing.T) {
	for _, r := range Reasons() {
		got, err := ParseReason(string(r))
		if err != nil || got != r {
			t.Errorf("ParseReason(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseReason("meh"); err == nil {
		t.Error("Expected error for unknown reason")
	}
}

func TestStateString(t *testing.T) {
	s := State{Kind: NegativeReasoned, Reason: ReasonMisidentifiedFood}
	if s.String() != "negative-reasoned(misidentified-food)" {
		t.Errorf("Unexpected string %q", s.String())
	}
	if (State{}).String() != "unset" {
		t.Errorf("Unexpected zero string %q", State{}.String())
	}
}

func TestActive(t *testing.T) {
	var s State
	if !s.Active() || s.AwaitingReason() {
		t.Error("Unset should ask for thumbs")
	}
	s, _ = s.Dislike()
	if !s.Active() || !s.AwaitingReason() {
		t.Error("Negative without reason should ask for a reason")
	}
	s, _ = s.Explain(ReasonOther)
	if s.Active() {
		t.Error("Reasoned negative should not ask for anything")
	}
}
