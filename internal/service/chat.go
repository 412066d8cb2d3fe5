package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/psychodetective/internal/domain"
)

// MaxChatHistory is the number of prior messages forwarded with a chat turn.
const MaxChatHistory = 10

// ChatService answers consultation messages.
type ChatService struct {
	*pipeline
}

// NewChatService creates a new ChatService.
func NewChatService(deps Deps) *ChatService {
	return &ChatService{pipeline: newPipeline(deps, "chat")}
}

// Reply answers message given the recent conversation. Chat turns are
// neither cached nor persisted.
func (s *ChatService) Reply(ctx context.Context, userID int64, message string, history []domain.ChatMessage) (*domain.AnalysisResponse, error) {
	loose := s.loose()

	clean, err := s.clean(loose, "message", message)
	if err != nil {
		return nil, err
	}

	if len(history) > MaxChatHistory {
		history = history[len(history)-MaxChatHistory:]
	}

	turns := make([]domain.ChatMessage, 0, len(history))
	for i, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" && role != "assistant" {
			return nil, fmt.Errorf("%w: history[%d] has role %q", domain.ErrInvalidOperation, i, m.Role)
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if role == "user" {
			content = loose.Mask(content)
		}
		turns = append(turns, domain.ChatMessage{Role: role, Content: content})
	}

	alerts := s.rules.Analyze(message)

	return s.run(ctx, userID, domain.ChatPayload{Message: clean, History: turns}, alerts, runOpts{})
}
