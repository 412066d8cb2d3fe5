package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychodetective/internal/domain"
)

func testOperations() []domain.Operation {
	return []domain.Operation{
		{
			Kind:        domain.KindToxicity,
			Payload:     domain.TextPayload{Text: "He reads my messages every evening"},
			MaxTokens:   1000,
			Temperature: 0.3,
		},
		{
			Kind: domain.KindPartnerProfile,
			Payload: domain.ProfilePayload{
				PartnerName: "Alex",
				Answers: []domain.Answer{
					{QuestionID: "q1", Question: "Does the partner criticise you?", Answer: "Often", Block: "narcissism"},
					{QuestionID: "q2", Question: "Does the partner check your phone?", Answer: "Yes"},
				},
			},
			MaxTokens:   4000,
			Temperature: 0.7,
		},
		{
			Kind: domain.KindCompatibility,
			Payload: domain.CompatibilityPayload{
				UserAnswers:    map[string]string{"q2": "b", "q1": "a", "q3": "c"},
				PartnerAnswers: map[string]string{"q1": "a", "q3": "b", "q2": "b"},
			},
			MaxTokens:   2000,
			Temperature: 0.5,
		},
		{
			Kind:        domain.KindPersonalityType,
			Payload:     domain.PersonalityPayload{Answers: map[string]string{"b": "2", "a": "1", "c": "3"}},
			MaxTokens:   1000,
			Temperature: 0.3,
		},
		{
			Kind: domain.KindChatTurn,
			Payload: domain.ChatPayload{
				Message: "What should I do?",
				History: []domain.ChatMessage{{Role: "user", Content: "Hi"}, {Role: "assistant", Content: "Hello"}},
			},
			MaxTokens:   800,
			Temperature: 0.7,
		},
	}
}

func TestDefaultPromptBuilder_Deterministic(t *testing.T) {
	b, err := NewDefaultPromptBuilder("")
	require.NoError(t, err)

	for _, op := range testOperations() {
		t.Run(string(op.Kind), func(t *testing.T) {
			first, err := b.Build(op)
			require.NoError(t, err)

			for i := 0; i < 20; i++ {
				again, err := b.Build(op)
				require.NoError(t, err)
				assert.Equal(t, first, again)
			}

			assert.Contains(t, first.System, "ONLY a single valid JSON object")
			assert.Contains(t, first.System, DefaultLanguage)
			assert.NotEmpty(t, first.User)
		})
	}
}

func TestDefaultPromptBuilder_Content(t *testing.T) {
	b, err := NewDefaultPromptBuilder("English")
	require.NoError(t, err)
	assert.Equal(t, "English", b.Language())

	ops := testOperations()

	tox, err := b.Build(ops[0])
	require.NoError(t, err)
	assert.Contains(t, tox.User, "He reads my messages every evening")
	assert.Contains(t, tox.System, "emotional_blackmail")
	assert.Contains(t, tox.System, "English")

	profile, err := b.Build(ops[1])
	require.NoError(t, err)
	assert.Contains(t, profile.User, "Partner name: Alex")
	assert.Contains(t, profile.User, "- [narcissism] Does the partner criticise you?: Often")
	assert.Contains(t, profile.User, `"gaslighting": "number 0-10"`)

	compat, err := b.Build(ops[2])
	require.NoError(t, err)
	assert.Contains(t, compat.User, "- q1: a\n- q2: b\n- q3: c")

	personality, err := b.Build(ops[3])
	require.NoError(t, err)
	assert.Contains(t, personality.User, "empath|analyst|defender|harmonizer|adaptive")

	chat, err := b.Build(ops[4])
	require.NoError(t, err)
	assert.Contains(t, chat.User, "assistant: Hello")
}

func TestDefaultPromptBuilder_InvalidOperation(t *testing.T) {
	b, err := NewDefaultPromptBuilder("")
	require.NoError(t, err)

	tests := []struct {
		name string
		op   domain.Operation
	}{
		{name: "unknown kind", op: domain.Operation{Kind: "horoscope", Payload: domain.TextPayload{Text: "x"}, MaxTokens: 100}},
		{name: "mismatched payload", op: domain.Operation{Kind: domain.KindChatTurn, Payload: domain.TextPayload{Text: "x"}, MaxTokens: 100}},
		{name: "missing payload", op: domain.Operation{Kind: domain.KindToxicity, MaxTokens: 100}},
		{name: "empty text", op: domain.Operation{Kind: domain.KindToxicity, Payload: domain.TextPayload{Text: " "}, MaxTokens: 100}},
		{name: "zero tokens", op: domain.Operation{Kind: domain.KindToxicity, Payload: domain.TextPayload{Text: "x"}}},
		{name: "temperature out of range", op: domain.Operation{Kind: domain.KindToxicity, Payload: domain.TextPayload{Text: "x"}, MaxTokens: 100, Temperature: 3}},
		{name: "pointer payload", op: domain.Operation{Kind: domain.KindToxicity, Payload: &domain.TextPayload{Text: "x"}, MaxTokens: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.op)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidOperation), "got %v", err)
		})
	}
}

func TestCustomPromptBuilder_Override(t *testing.T) {
	b, err := NewCustomPromptBuilder("Russian", map[domain.Kind]string{
		domain.KindChatTurn: "You are a friendly assistant.",
	})
	require.NoError(t, err)

	p, err := b.Build(testOperations()[4])
	require.NoError(t, err)
	assert.Contains(t, p.System, "You are a friendly assistant.")
	assert.Contains(t, p.System, "ONLY a single valid JSON object")

	_, err = NewCustomPromptBuilder("Russian", map[domain.Kind]string{"horoscope": "x"})
	assert.Error(t, err)
}
