package chat

// ChangeRef identifies one affected message in a change-set.
type ChangeRef struct {
	ID   string `json:"id"`
	Seq  int    `json:"seq"`
	Role string `json:"role"`
}

// ChangeSet lists every message a sync operation touched, grouped by the kind
// of mutation. Unchanged messages never appear.
type ChangeSet struct {
	Inserted []ChangeRef `json:"inserted"`
	Updated  []ChangeRef `json:"updated"`
	Deleted  []ChangeRef `json:"deleted"`
}

// NewChangeSet returns a change-set with non-nil slices so the JSON encoding
// always carries the three arrays.
func NewChangeSet() ChangeSet {
	return ChangeSet{
		Inserted: []ChangeRef{},
		Updated:  []ChangeRef{},
		Deleted:  []ChangeRef{},
	}
}

// Empty reports whether the operation changed nothing.
func (c ChangeSet) Empty() bool {
	return len(c.Inserted) == 0 && len(c.Updated) == 0 && len(c.Deleted) == 0
}

// Ref builds the change-set entry for a message.
func Ref(m *Message) ChangeRef {
	return ChangeRef{ID: m.ID, Seq: m.Seq, Role: m.Role}
}

// SyncResult is the outcome of a successful sync operation.
// ForkConversationID is set only by Edit, naming the conversation that now
// holds the truncated tail.
type SyncResult struct {
	ConversationID     string    `json:"conversation_id"`
	Operations         ChangeSet `json:"operations"`
	ForkConversationID string    `json:"fork_conversation_id,omitempty"`
}
