package agent

import (
	"reflect"
	"testing"

	"github.com/lumenhq/taskagent/internal/tools"
)

func TestDecideFallback(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantInv tools.Invocation
		wantRep string
	}{
		{
			name:    "add with title",
			message: "add buy milk",
			wantInv: tools.AddTask{Title: "buy milk"},
		},
		{
			name:    "add strips task keyword",
			message: "add task buy milk",
			wantInv: tools.AddTask{Title: "buy milk"},
		},
		{
			name:    "add without title uses default",
			message: "add task",
			wantInv: tools.AddTask{Title: "New Task"},
		},
		{
			name:    "list",
			message: "list my tasks",
			wantInv: tools.ListTasks{},
		},
		{
			name:    "show",
			message: "show me what I have",
			wantInv: tools.ListTasks{},
		},
		{
			name:    "complete with id",
			message: "complete 7",
			wantInv: tools.CompleteTask{TaskID: 7},
		},
		{
			name:    "done with id",
			message: "I'm done with 3",
			wantInv: tools.CompleteTask{TaskID: 3},
		},
		{
			name:    "complete without id",
			message: "complete it",
			wantRep: fallbackAskCompleteID,
		},
		{
			name:    "delete with id",
			message: "delete 12",
			wantInv: tools.DeleteTask{TaskID: 12},
		},
		{
			name:    "delete without id",
			message: "delete the thing",
			wantRep: fallbackAskDeleteID,
		},
		{
			name:    "unrecognized",
			message: "what's the weather like?",
			wantRep: fallbackHelp,
		},
		{
			name:    "add wins over delete",
			message: "add something then delete 5",
			wantInv: tools.AddTask{Title: "something then delete 5"},
		},
		{
			name:    "case insensitive matching",
			message: "LIST everything",
			wantInv: tools.ListTasks{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideFallback(tt.message)

			if tt.wantRep != "" {
				if got.Invocation != nil {
					t.Fatalf("expected fixed reply, got invocation %#v", got.Invocation)
				}
				if got.Reply != tt.wantRep {
					t.Errorf("reply = %q, want %q", got.Reply, tt.wantRep)
				}
				return
			}

			if got.Invocation == nil {
				t.Fatalf("expected invocation, got reply %q", got.Reply)
			}
			if !reflect.DeepEqual(got.Invocation, tt.wantInv) {
				t.Errorf("invocation = %#v, want %#v", got.Invocation, tt.wantInv)
			}
			if got.Template == "" {
				t.Error("invocation decisions must carry a reply template")
			}
		})
	}
}

// The decision procedure is a pure function of the message text.
func TestDecideFallbackDeterministic(t *testing.T) {
	for _, message := range []string{"add buy milk", "list", "complete 7", "hello"} {
		first := DecideFallback(message)
		second := DecideFallback(message)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("DecideFallback(%q) is not deterministic: %#v vs %#v", message, first, second)
		}
	}
}
