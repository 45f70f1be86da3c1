// Package feedback records whether the user found an analysis helpful.
package feedback

import (
	"errors"
	"fmt"
)

// ErrTransition is returned for a button press the current state does not accept
var ErrTransition = errors.New("feedback transition not allowed")

// Kind tags a State
type Kind int

const (
	Unset Kind = iota
	Positive
	NegativeUnreasoned
	NegativeReasoned
)

func (k Kind) String() string {
	switch k {
	case Unset:
		return "unset"
	case Positive:
		return "positive"
	case NegativeUnreasoned:
		return "negative"
	case NegativeReasoned:
		return "negative-reasoned"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Reason explains negative feedback
type Reason string

const (
	ReasonMisidentifiedFood  Reason = "misidentified-food"
	ReasonBadNutritionValues Reason = "bad-nutrition-values"
	ReasonPoorAdvice         Reason = "poor-advice"
	ReasonOther              Reason = "other"
)

// Reasons lists the selectable reasons in display order
func Reasons() []Reason {
	return []Reason{ReasonMisidentifiedFood, ReasonBadNutritionValues, ReasonPoorAdvice, ReasonOther}
}

// ParseReason validates a reason code
func ParseReason(s string) (Reason, error) {
	for _, r := range Reasons() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown feedback reason %q", s)
}

// State is the feedback for one attempt. The zero value is Unset.
type State struct {
	Kind   Kind
	Reason Reason
}

// Terminal reports whether no further presses are accepted
func (s State) Terminal() bool {
	return s.Kind == Positive || s.Kind == NegativeReasoned
}

// Active reports whether the user is still being asked for input: the
// thumbs buttons while Unset, the reason picker after a thumbs down
func (s State) Active() bool {
	return !s.Terminal()
}

// AwaitingReason reports whether the reason picker is shown
func (s State) AwaitingReason() bool {
	return s.Kind == NegativeUnreasoned
}

// Like records a thumbs up
func (s State) Like() (State, error) {
	if s.Kind != Unset {
		return s, fmt.Errorf("%w: like from %s", ErrTransition, s.Kind)
	}
	return State{Kind: Positive}, nil
}

// Dislike records a thumbs down; a reason is asked for next
func (s State) Dislike() (State, error) {
	if s.Kind != Unset {
		return s, fmt.Errorf("%w: dislike from %s", ErrTransition, s.Kind)
	}
	return State{Kind: NegativeUnreasoned}, nil
}

// Explain attaches the reason for a thumbs down
func (s State) Explain(r Reason) (State, error) {
	if s.Kind != NegativeUnreasoned {
		return s, fmt.Errorf("%w: reason from %s", ErrTransition, s.Kind)
	}
	if _, err := ParseReason(string(r)); err != nil {
		return s, err
	}
	return State{Kind: NegativeReasoned, Reason: r}, nil
}

func (s State) String() string {
	if s.Kind == NegativeReasoned {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
	}
	return s.Kind.String()
}
