package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lumenhq/taskagent/internal/tools"
)

// Fallback reply texts.
const (
	fallbackHelp          = "Hi! I'm your task assistant. You can ask me to add, list, complete, or delete tasks."
	fallbackAskCompleteID = "Which task ID should I mark as complete?"
	fallbackAskDeleteID   = "Which task ID should I delete?"
	fallbackDefaultTitle  = "New Task"
)

var firstInteger = regexp.MustCompile(`\d+`)

// FallbackDecision is the outcome of the deterministic keyword procedure.
// Either Invocation is set together with a reply template (one %s slot for
// the tool's status text), or Reply carries a fixed answer and no tool
// runs.
type FallbackDecision struct {
	Invocation tools.Invocation
	Template   string
	Reply      string
}

// DecideFallback maps a message to at most one tool invocation using
// keyword heuristics, in priority order: add, list/show, complete/done,
// delete. It is a pure function of the message text; identical input
// always yields the identical decision.
func DecideFallback(message string) FallbackDecision {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "add"):
		title := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(message, "add", ""), "task", ""))
		if title == "" {
			title = fallbackDefaultTitle
		}
		return FallbackDecision{
			Invocation: tools.AddTask{Title: title},
			Template:   "I've added that for you. %s",
		}

	case strings.Contains(lower, "list") || strings.Contains(lower, "show"):
		return FallbackDecision{
			Invocation: tools.ListTasks{},
			Template:   "Here are your tasks:\n%s",
		}

	case strings.Contains(lower, "complete") || strings.Contains(lower, "done"):
		id, ok := extractID(lower)
		if !ok {
			return FallbackDecision{Reply: fallbackAskCompleteID}
		}
		return FallbackDecision{
			Invocation: tools.CompleteTask{TaskID: id},
			Template:   "Updated! %s",
		}

	case strings.Contains(lower, "delete"):
		id, ok := extractID(lower)
		if !ok {
			return FallbackDecision{Reply: fallbackAskDeleteID}
		}
		return FallbackDecision{
			Invocation: tools.DeleteTask{TaskID: id},
			Template:   "Deleted! %s",
		}
	}

	return FallbackDecision{Reply: fallbackHelp}
}

func extractID(lower string) (int64, bool) {
	match := firstInteger.FindString(lower)
	if match == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
