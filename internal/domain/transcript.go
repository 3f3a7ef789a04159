package domain

// Entry is one element of the running conversation transcript.
type Entry struct {
	Kind        EntryKind        `json:"kind"`
	Text        string           `json:"text,omitempty"`
	Params      map[string]any   `json:"params,omitempty"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	Results     []ToolResult     `json:"results,omitempty"`
}

// Transcript is the monotonically growing conversation record owned by
// a single driver run. It is discarded when the run terminates, except
// that failed terminal results carry it for diagnostics.
type Transcript struct {
	Entries []Entry `json:"entries"`
}

// NewTranscript seeds a transcript with the task instructions and the
// caller-supplied parameters.
func NewTranscript(instructions string, params map[string]any) *Transcript {
	return &Transcript{Entries: []Entry{{
		Kind:   EntryTask,
		Text:   instructions,
		Params: params,
	}}}
}

// Append adds an entry to the transcript.
func (t *Transcript) Append(e Entry) {
	t.Entries = append(t.Entries, e)
}

// Task returns the seeding task entry, or nil for an empty transcript.
func (t *Transcript) Task() *Entry {
	if len(t.Entries) == 0 || t.Entries[0].Kind != EntryTask {
		return nil
	}
	return &t.Entries[0]
}

// LastResults returns the results of the most recent dispatch round,
// or nil if no tools have been executed yet.
func (t *Transcript) LastResults() []ToolResult {
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if t.Entries[i].Kind == EntryResults {
			return t.Entries[i].Results
		}
	}
	return nil
}

// Rounds counts the completed tool-dispatch rounds recorded so far.
func (t *Transcript) Rounds() int {
	n := 0
	for _, e := range t.Entries {
		if e.Kind == EntryResults {
			n++
		}
	}
	return n
}
