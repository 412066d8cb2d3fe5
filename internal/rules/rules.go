// Package rules provides rule-based crisis detection.
// Rules run on the user's text before AI analysis and attach support
// hotlines to the response. They never change AI scores.
package rules

import (
	"regexp"
	"strings"
)

// Crisis hotlines.
const (
	HotlineEmergency = "112"
	HotlineTrust     = "8-800-2000-122"
	HotlineGeneral   = "8-800-7000-600"
)

// Crisis categories.
const (
	CategoryViolence = "violence"
	CategorySelfHarm = "self_harm"
	CategoryStalking = "stalking"
	CategoryThreats  = "threats"
)

// Rule represents a single crisis detection rule.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string

	// Category is the crisis category reported in alerts.
	Category string

	// Keywords are simple string matches (case-insensitive).
	Keywords []string

	// Patterns are regex patterns to match against the text.
	Patterns []*regexp.Regexp

	// Message is the guidance shown to the user.
	Message string

	// Hotlines are the support numbers for this category.
	Hotlines []string
}

// Match checks if the text matches this rule.
func (r *Rule) Match(text string) bool {
	lower := strings.ToLower(text)

	for _, kw := range r.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	for _, pattern := range r.Patterns {
		if pattern.MatchString(text) {
			return true
		}
	}

	return false
}

// DefaultRules returns the built-in crisis rules.
func DefaultRules() []*Rule {
	return []*Rule{
		physicalViolence(),
		selfHarm(),
		deathThreats(),
		stalking(),
	}
}

func physicalViolence() *Rule {
	return &Rule{
		ID:       "crisis_physical_violence",
		Category: CategoryViolence,
		Keywords: []string{"ударил", "избил", "бьет меня", "бьёт меня", "душил", "толкнул меня", "hit me", "beat me", "choked me"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)поднял на меня руку`),
			regexp.MustCompile(`(?i)(синяк|побои)`),
		},
		Message:  "Если вам угрожает физическая опасность, немедленно позвоните 112. Вы не виноваты в насилии.",
		Hotlines: []string{HotlineEmergency, HotlineGeneral},
	}
}

func selfHarm() *Rule {
	return &Rule{
		ID:       "crisis_self_harm",
		Category: CategorySelfHarm,
		Keywords: []string{"покончить с собой", "не хочу жить", "суицид", "убить себя", "kill myself", "suicide"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(порезать|навредить)\s+себе`),
			regexp.MustCompile(`(?i)лучше\s+бы\s+меня\s+не\s+было`),
		},
		Message:  "Вы не одни. Поговорите со специалистом прямо сейчас, звонок бесплатный и анонимный.",
		Hotlines: []string{HotlineTrust, HotlineGeneral},
	}
}

func deathThreats() *Rule {
	return &Rule{
		ID:       "crisis_death_threats",
		Category: CategoryThreats,
		Keywords: []string{"убью тебя", "тебе не жить", "i will kill you"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)если\s+уйд[её]шь.{0,40}(убью|пожалеешь)`),
		},
		Message:  "Угрозы жизни являются поводом обратиться в полицию. Сохраните переписку как доказательство.",
		Hotlines: []string{HotlineEmergency, HotlineGeneral},
	}
}

func stalking() *Rule {
	return &Rule{
		ID:       "crisis_stalking",
		Category: CategoryStalking,
		Keywords: []string{"следит за мной", "преследует меня", "установил трекер", "читает мою переписку"},
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(ждал|караулил)\s+(меня\s+)?у\s+(дома|подъезда|работы)`),
		},
		Message:  "Преследование опасно. Расскажите близким, сохраните доказательства и обратитесь за поддержкой.",
		Hotlines: []string{HotlineGeneral},
	}
}
