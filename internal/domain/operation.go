package domain

import (
	"fmt"
	"strings"
)

// Kind identifies the analysis an operation requests.
type Kind string

const (
	KindToxicity        Kind = "toxicity_analysis"
	KindPartnerProfile  Kind = "partner_profile"
	KindCompatibility   Kind = "compatibility"
	KindPersonalityType Kind = "personality_type"
	KindChatTurn        Kind = "chat_turn"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindToxicity, KindPartnerProfile, KindCompatibility, KindPersonalityType, KindChatTurn}

// IsValid checks if the kind is one of the supported kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindToxicity, KindPartnerProfile, KindCompatibility, KindPersonalityType, KindChatTurn:
		return true
	default:
		return false
	}
}

// Payload is the kind-specific input of an operation.
type Payload interface {
	// Kind returns the operation kind this payload belongs to.
	Kind() Kind
}

// TextPayload carries free text for toxicity analysis.
type TextPayload struct {
	Text string `json:"text"`
}

// Kind implements Payload.
func (TextPayload) Kind() Kind { return KindToxicity }

// Answer is one questionnaire answer.
type Answer struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Block      string `json:"block,omitempty"`
}

// ProfilePayload carries the partner questionnaire.
type ProfilePayload struct {
	PartnerName string   `json:"partner_name"`
	Description string   `json:"description,omitempty"`
	Answers     []Answer `json:"answers"`
}

// Kind implements Payload.
func (ProfilePayload) Kind() Kind { return KindPartnerProfile }

// CompatibilityPayload carries both partners' answers keyed by question id.
type CompatibilityPayload struct {
	UserAnswers    map[string]string `json:"user_answers"`
	PartnerAnswers map[string]string `json:"partner_answers"`
}

// Kind implements Payload.
func (CompatibilityPayload) Kind() Kind { return KindCompatibility }

// PersonalityPayload carries personality questionnaire answers keyed by question id.
type PersonalityPayload struct {
	Answers map[string]string `json:"answers"`
}

// Kind implements Payload.
func (PersonalityPayload) Kind() Kind { return KindPersonalityType }

// ChatMessage is one turn of a consultation dialog.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatPayload carries a user message with prior dialog turns.
type ChatPayload struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history,omitempty"`
}

// Kind implements Payload.
func (ChatPayload) Kind() Kind { return KindChatTurn }

// Operation is a single analysis request handed to the orchestrator.
// It is passed by value and never mutated.
type Operation struct {
	Kind        Kind
	Payload     Payload
	MaxTokens   int
	Temperature float64
}

// Validate checks that the operation is well formed.
func (o Operation) Validate() error {
	if !o.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOperation, o.Kind)
	}
	if o.Payload == nil {
		return fmt.Errorf("%w: missing payload", ErrInvalidOperation)
	}
	if o.Payload.Kind() != o.Kind {
		return fmt.Errorf("%w: payload for %s used with kind %s", ErrInvalidOperation, o.Payload.Kind(), o.Kind)
	}
	if o.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive", ErrInvalidOperation)
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		return fmt.Errorf("%w: temperature %.2f out of range", ErrInvalidOperation, o.Temperature)
	}

	switch p := o.Payload.(type) {
	case TextPayload:
		if strings.TrimSpace(p.Text) == "" {
			return fmt.Errorf("%w: empty text", ErrInvalidOperation)
		}
	case ProfilePayload:
		if len(p.Answers) == 0 {
			return fmt.Errorf("%w: no questionnaire answers", ErrInvalidOperation)
		}
	case CompatibilityPayload:
		if len(p.UserAnswers) == 0 || len(p.PartnerAnswers) == 0 {
			return fmt.Errorf("%w: both answer sets are required", ErrInvalidOperation)
		}
	case PersonalityPayload:
		if len(p.Answers) == 0 {
			return fmt.Errorf("%w: no personality answers", ErrInvalidOperation)
		}
	case ChatPayload:
		if strings.TrimSpace(p.Message) == "" {
			return fmt.Errorf("%w: empty message", ErrInvalidOperation)
		}
	}

	return nil
}
