package ai

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/psychodetective/internal/domain"
)

// DefaultLanguage is the response language used when none is configured.
const DefaultLanguage = "Russian"

// jsonOnlyInstruction closes every system prompt.
const jsonOnlyInstruction = `CRITICAL: You MUST respond with ONLY a single valid JSON object matching the exact schema provided. No markdown, no explanations, no text before or after the object.
Write every free-text value in {{.Language}}. Keep enum values exactly as listed in the schema.`

// System prompts define the AI's role per operation kind.
// They are versioned as code and can be reviewed/tested.
const toxicitySystemPrompt = `You are a clinical psychologist with 15 years of experience analysing toxic and abusive relationships.

Your responsibilities:
1. Rate the toxicity of the described partner behaviour from 1 (healthy) to 10 (dangerous)
2. Name the concrete red flags found in the text
3. Identify manipulation patterns from this list only: {{.Patterns}}
4. Choose an urgency level: low, medium, high or critical
5. Give a short analysis and one practical recommendation

Guidelines:
- Base every conclusion on concrete phrases from the text
- Use critical urgency only for threats to physical safety
- Report your confidence from 0.0 to 1.0

`

const profileSystemPrompt = `You are a team of experts in psychological profiling: a clinical psychologist, a family therapist and a risk assessment specialist.

Your responsibilities:
1. Score each behavioural block from 0 to 10: {{.Blocks}}
2. Compute an overall risk score from 0 to 100
3. Choose an urgency level: low, medium, high or critical
4. Write a detailed, personalised narrative built on the concrete answers
5. List red flags, strengths and recommendations

Guidelines:
- Quote specific answers as evidence, avoid generic wording
- Higher scores mean more harmful behaviour
- Report your confidence from 0.0 to 1.0

`

const compatibilitySystemPrompt = `You are a couples therapist assessing the compatibility of two partners from their questionnaire answers.

Your responsibilities:
1. Score overall compatibility from 1 to 10
2. Score each dimension from 1 to 10: {{.Dimensions}}
3. List strengths, challenges and recommendations for the couple
4. Summarise the outlook in a few sentences

`

const personalitySystemPrompt = `You are a psychologist classifying a person's relationship personality type from questionnaire answers.

Choose exactly one type from this list: {{.Types}}
Use "adaptive" when the answers do not point clearly to a single type.
Describe the type, list key traits and report your confidence from 0.0 to 1.0.

`

const chatSystemPrompt = `You are a supportive relationship psychologist consulting a user in a messenger chat.

Guidelines:
- Answer warmly and concretely, in a few short paragraphs
- Never diagnose the partner, describe behaviour instead
- If the user describes danger to life or health, recommend contacting emergency services

`

// User prompt templates define how payloads are presented to the AI.
const toxicityUserTemplate = `Analyse the following text and return valid JSON exactly matching this schema:

{
  "toxicity_score": "integer 1-10",
  "red_flags": ["string array - concrete warning signs"],
  "patterns": ["string array - values from the allowed pattern list"],
  "urgency_level": "low|medium|high|critical",
  "confidence": "number 0.0-1.0",
  "analysis": "string - what is happening and why it matters",
  "recommendation": "string - what the user should do next"
}

Text:
---
{{.Text}}
---

Respond with ONLY the JSON object, no additional text.`

const profileUserTemplate = `Build a psychological profile of the partner and return valid JSON exactly matching this schema:

{
  "narrative": "string - detailed personalised profile",
  "overall_risk_score": "number 0-100",
  "urgency_level": "low|medium|high|critical",
  "block_scores": {{.BlockSchema}},
  "red_flags": ["string array"],
  "strengths": ["string array"],
  "recommendations": ["string array"],
  "confidence": "number 0.0-1.0"
}

Partner name: {{.PartnerName}}
{{- if .Description}}
Partner description: {{.Description}}
{{- end}}

Questionnaire answers:
{{range .Answers}}- {{if .Block}}[{{.Block}}] {{end}}{{.Question}}: {{.Answer}}
{{end}}
Respond with ONLY the JSON object, no additional text.`

const compatibilityUserTemplate = `Assess the compatibility of the couple and return valid JSON exactly matching this schema:

{
  "overall_score": "number 1-10",
  "dimensions": {{.DimensionSchema}},
  "strengths": ["string array"],
  "challenges": ["string array"],
  "recommendations": ["string array"],
  "summary": "string"
}

User answers:
{{range .UserAnswers}}- {{.Key}}: {{.Value}}
{{end}}
Partner answers:
{{range .PartnerAnswers}}- {{.Key}}: {{.Value}}
{{end}}
Respond with ONLY the JSON object, no additional text.`

const personalityUserTemplate = `Determine the personality type and return valid JSON exactly matching this schema:

{
  "type": "{{.TypeEnum}}",
  "description": "string",
  "traits": ["string array"],
  "confidence": "number 0.0-1.0"
}

Answers:
{{range .Answers}}- {{.Key}}: {{.Value}}
{{end}}
Respond with ONLY the JSON object, no additional text.`

const chatUserTemplate = `Reply to the user and return valid JSON exactly matching this schema:

{
  "reply": "string - your answer to the user"
}
{{if .History}}
Conversation so far:
{{range .History}}{{.Role}}: {{.Content}}
{{end}}{{end}}
User message:
---
{{.Message}}
---

Respond with ONLY the JSON object, no additional text.`

// pair is a map entry rendered in key order.
type pair struct {
	Key   string
	Value string
}

func sortedPairs(m map[string]string) []pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]pair, 0, len(keys))
	for _, k := range keys {
		out = append(out, pair{Key: k, Value: m[k]})
	}
	return out
}

// DefaultPromptBuilder implements PromptBuilder with templated prompts.
// Templates are parsed once; Build is safe for concurrent use.
type DefaultPromptBuilder struct {
	language string
	system   map[domain.Kind]string
	user     map[domain.Kind]*template.Template
}

// NewDefaultPromptBuilder creates a prompt builder answering in the given language.
func NewDefaultPromptBuilder(language string) (*DefaultPromptBuilder, error) {
	return NewCustomPromptBuilder(language, nil)
}

// NewCustomPromptBuilder creates a prompt builder whose system prompts may be
// replaced per kind. The JSON-only instruction is always appended.
func NewCustomPromptBuilder(language string, systemOverrides map[domain.Kind]string) (*DefaultPromptBuilder, error) {
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}

	systemTexts := map[domain.Kind]string{
		domain.KindToxicity:        toxicitySystemPrompt,
		domain.KindPartnerProfile:  profileSystemPrompt,
		domain.KindCompatibility:   compatibilitySystemPrompt,
		domain.KindPersonalityType: personalitySystemPrompt,
		domain.KindChatTurn:        chatSystemPrompt,
	}
	for kind, text := range systemOverrides {
		if !kind.IsValid() {
			return nil, fmt.Errorf("system prompt override for unknown kind %q", kind)
		}
		systemTexts[kind] = strings.TrimRight(text, "\n") + "\n\n"
	}

	userTexts := map[domain.Kind]string{
		domain.KindToxicity:        toxicityUserTemplate,
		domain.KindPartnerProfile:  profileUserTemplate,
		domain.KindCompatibility:   compatibilityUserTemplate,
		domain.KindPersonalityType: personalityUserTemplate,
		domain.KindChatTurn:        chatUserTemplate,
	}

	vocab := struct {
		Language   string
		Patterns   string
		Blocks     string
		Dimensions string
		Types      string
	}{
		Language:   language,
		Patterns:   joinValues(domain.ManipulationPatterns),
		Blocks:     joinValues(domain.Blocks),
		Dimensions: joinValues(domain.Dimensions),
		Types:      joinValues(domain.PersonalityTypes),
	}

	b := &DefaultPromptBuilder{
		language: language,
		system:   make(map[domain.Kind]string, len(systemTexts)),
		user:     make(map[domain.Kind]*template.Template, len(userTexts)),
	}

	// System prompts do not depend on the payload, so they are rendered once here.
	for kind, text := range systemTexts {
		tmpl, err := template.New("system_" + string(kind)).Parse(text + jsonOnlyInstruction)
		if err != nil {
			return nil, fmt.Errorf("parse system prompt %s: %w", kind, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, vocab); err != nil {
			return nil, fmt.Errorf("render system prompt %s: %w", kind, err)
		}
		b.system[kind] = buf.String()
	}

	for kind, text := range userTexts {
		tmpl, err := template.New("user_" + string(kind)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse user prompt %s: %w", kind, err)
		}
		b.user[kind] = tmpl
	}

	return b, nil
}

// Language returns the configured response language.
func (b *DefaultPromptBuilder) Language() string {
	return b.language
}

// Build renders the operation into a system and user prompt.
func (b *DefaultPromptBuilder) Build(op domain.Operation) (Prompt, error) {
	if err := op.Validate(); err != nil {
		return Prompt{}, err
	}

	data, err := templateData(op.Payload)
	if err != nil {
		return Prompt{}, err
	}

	var buf bytes.Buffer
	if err := b.user[op.Kind].Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("%w: render %s prompt: %v", domain.ErrInvalidOperation, op.Kind, err)
	}

	return Prompt{
		System: b.system[op.Kind],
		User:   buf.String(),
	}, nil
}

func templateData(payload domain.Payload) (any, error) {
	switch p := payload.(type) {
	case domain.TextPayload:
		return struct{ Text string }{Text: p.Text}, nil

	case domain.ProfilePayload:
		return struct {
			PartnerName string
			Description string
			Answers     []domain.Answer
			BlockSchema string
		}{
			PartnerName: p.PartnerName,
			Description: p.Description,
			Answers:     p.Answers,
			BlockSchema: numberObjectSchema(domain.Blocks, "0-10"),
		}, nil

	case domain.CompatibilityPayload:
		return struct {
			UserAnswers     []pair
			PartnerAnswers  []pair
			DimensionSchema string
		}{
			UserAnswers:     sortedPairs(p.UserAnswers),
			PartnerAnswers:  sortedPairs(p.PartnerAnswers),
			DimensionSchema: numberObjectSchema(domain.Dimensions, "1-10"),
		}, nil

	case domain.PersonalityPayload:
		types := make([]string, 0, len(domain.PersonalityTypes))
		for _, t := range domain.PersonalityTypes {
			types = append(types, string(t))
		}
		return struct {
			Answers  []pair
			TypeEnum string
		}{
			Answers:  sortedPairs(p.Answers),
			TypeEnum: strings.Join(types, "|"),
		}, nil

	case domain.ChatPayload:
		return struct {
			Message string
			History []domain.ChatMessage
		}{
			Message: p.Message,
			History: p.History,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", domain.ErrInvalidOperation, payload)
	}
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func numberObjectSchema[T ~string](keys []T, valueRange string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q: \"number %s\"", string(k), valueRange)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
