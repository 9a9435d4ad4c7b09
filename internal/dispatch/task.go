package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskGenerateMemoryBatch   TaskType = "GENERATE_MEMORY_BATCH"
	TaskUserPersonaGeneration TaskType = "USER_PERSONA_GENERATION"
	TaskOpeningMessage        TaskType = "OPENING_MESSAGE"
)

// Task is the unit of work handed to the worker service. The same JSON
// body travels over both transports; the worker cannot tell (and must not
// care) whether it arrived over HTTP or off the queue.
type Task struct {
	Type   TaskType  `json:"task_type"`
	UserID uuid.UUID `json:"user_id"`

	// GENERATE_MEMORY_BATCH
	ConversationIDs []uuid.UUID `json:"conversation_ids,omitempty"`

	// OPENING_MESSAGE
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
	VisitNumber    int        `json:"visit_number,omitempty"`
	CallbackURL    string     `json:"callback_url,omitempty"`
}

func (t Task) Validate() error {
	if t.UserID == uuid.Nil {
		return fmt.Errorf("missing user_id")
	}
	switch t.Type {
	case TaskGenerateMemoryBatch:
		if len(t.ConversationIDs) == 0 {
			return fmt.Errorf("memory batch task needs conversation_ids")
		}
	case TaskUserPersonaGeneration:
		// user_id is enough
	case TaskOpeningMessage:
		if t.ConversationID == nil || *t.ConversationID == uuid.Nil {
			return fmt.Errorf("opening message task needs conversation_id")
		}
		if t.CallbackURL == "" {
			return fmt.Errorf("opening message task needs callback_url")
		}
	default:
		return fmt.Errorf("unknown task_type %q", t.Type)
	}
	return nil
}

// Encode produces the canonical wire body. Both transports send exactly
// these bytes.
func (t Task) Encode() ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(t)
}

// workerPath maps a task type to the worker's intake route.
func workerPath(tt TaskType) (string, error) {
	switch tt {
	case TaskGenerateMemoryBatch:
		return "/tasks/memory-batch", nil
	case TaskUserPersonaGeneration:
		return "/tasks/persona", nil
	case TaskOpeningMessage:
		return "/tasks/opening-message", nil
	default:
		return "", fmt.Errorf("unknown task_type %q", tt)
	}
}
