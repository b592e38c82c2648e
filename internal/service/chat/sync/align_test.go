package sync

import (
	"testing"

	"cadence/internal/config"
	chatModels "cadence/internal/domain/models/chat"
)

func storedMsg(id string, seq int, role, text string) chatModels.Message {
	return chatModels.Message{
		ID:      id,
		Seq:     seq,
		Role:    role,
		Content: chatModels.TextContent(text),
		Status:  chatModels.StatusFinal,
	}
}

func incomingMsg(id, role, text string) chatModels.IncomingMessage {
	return chatModels.IncomingMessage{
		ID:      id,
		Role:    role,
		Content: chatModels.TextContent(text),
	}
}

func TestAlignSuffix(t *testing.T) {
	policy := config.DefaultSyncPolicy()

	existing := []chatModels.Message{
		storedMsg("m1", 1, chatModels.RoleUser, "hello"),
		storedMsg("m2", 2, chatModels.RoleAssistant, "hi there"),
		storedMsg("m3", 3, chatModels.RoleUser, "how are you"),
		storedMsg("m4", 4, chatModels.RoleAssistant, "doing well"),
	}

	tests := []struct {
		name         string
		existing     []chatModels.Message
		incoming     []chatModels.IncomingMessage
		wantFallback bool
		wantReason   string
		wantOffset   int
		wantOverlap  int
	}{
		{
			name:     "full coverage identical",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("m1", chatModels.RoleUser, "hello"),
				incomingMsg("m2", chatModels.RoleAssistant, "hi there"),
				incomingMsg("m3", chatModels.RoleUser, "how are you"),
				incomingMsg("m4", chatModels.RoleAssistant, "doing well"),
			},
			wantOffset:  0,
			wantOverlap: 4,
		},
		{
			name:     "tail window with new message appended",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("m3", chatModels.RoleUser, "how are you"),
				incomingMsg("m4", chatModels.RoleAssistant, "doing well"),
				incomingMsg("m5", chatModels.RoleUser, "great"),
			},
			wantOffset:  2,
			wantOverlap: 2,
		},
		{
			name:     "tail window with edited last message",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("m3", chatModels.RoleUser, "how are you"),
				incomingMsg("m4", chatModels.RoleAssistant, "rewritten reply"),
			},
			wantOffset:  2,
			wantOverlap: 2,
		},
		{
			name:     "truncated payload covers prefix only",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("m1", chatModels.RoleUser, "hello"),
				incomingMsg("m2", chatModels.RoleAssistant, "hi there"),
			},
			wantOffset:  0,
			wantOverlap: 2,
		},
		{
			name:     "id-less messages matched by signature",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("", chatModels.RoleUser, "how  are   you"),
				incomingMsg("", chatModels.RoleAssistant, "doing well"),
			},
			wantOffset:  2,
			wantOverlap: 2,
		},
		{
			name:     "empty incoming against populated log falls back",
			existing: existing,
			incoming: nil,
			wantFallback: true,
			wantReason:   reasonEmptyIncoming,
		},
		{
			name:        "empty log takes everything as inserts",
			existing:    nil,
			incoming:    []chatModels.IncomingMessage{incomingMsg("m1", chatModels.RoleUser, "hello")},
			wantOffset:  0,
			wantOverlap: 0,
		},
		{
			name:     "role mismatch falls back under strict roles",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("m3", chatModels.RoleAssistant, "how are you"),
				incomingMsg("m4", chatModels.RoleAssistant, "doing well"),
			},
			wantFallback: true,
			wantReason:   reasonRoleMismatch,
		},
		{
			name:     "conflicting ids fall back",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("x3", chatModels.RoleUser, "how are you"),
				incomingMsg("x4", chatModels.RoleAssistant, "doing well"),
			},
			wantFallback: true,
			wantReason:   reasonIDConflict,
		},
		{
			name:     "interior divergence falls back",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("m1", chatModels.RoleUser, "edited opener"),
				incomingMsg("m2", chatModels.RoleAssistant, "hi there"),
				incomingMsg("m3", chatModels.RoleUser, "how are you"),
				incomingMsg("m4", chatModels.RoleAssistant, "doing well"),
			},
			wantFallback: true,
			wantReason:   reasonInteriorDivergence,
		},
		{
			name:     "no signature overlap falls back",
			existing: existing,
			incoming: []chatModels.IncomingMessage{
				incomingMsg("", chatModels.RoleUser, "completely different"),
				incomingMsg("", chatModels.RoleAssistant, "unrelated history"),
				incomingMsg("", chatModels.RoleUser, "nothing matches"),
				incomingMsg("", chatModels.RoleAssistant, "at all"),
			},
			wantFallback: true,
			wantReason:   reasonLowMatchRatio,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			al := alignSuffix(tt.existing, tt.incoming, policy)

			if al.Fallback != tt.wantFallback {
				t.Fatalf("Fallback = %v, want %v (reason=%q)", al.Fallback, tt.wantFallback, al.Reason)
			}
			if tt.wantFallback {
				if al.Reason != tt.wantReason {
					t.Errorf("Reason = %q, want %q", al.Reason, tt.wantReason)
				}
				return
			}
			if al.AnchorOffset != tt.wantOffset {
				t.Errorf("AnchorOffset = %d, want %d", al.AnchorOffset, tt.wantOffset)
			}
			if al.Overlap != tt.wantOverlap {
				t.Errorf("Overlap = %d, want %d", al.Overlap, tt.wantOverlap)
			}
		})
	}
}

func TestAlignSuffixLenientRoles(t *testing.T) {
	policy := config.SyncPolicy{MinMatchRatio: 0.3, StrictRoles: false}

	existing := []chatModels.Message{
		storedMsg("m1", 1, chatModels.RoleUser, "hello"),
		storedMsg("m2", 2, chatModels.RoleAssistant, "hi"),
		storedMsg("m3", 3, chatModels.RoleUser, "bye"),
	}
	incoming := []chatModels.IncomingMessage{
		incomingMsg("m1", chatModels.RoleUser, "hello"),
		incomingMsg("m2", chatModels.RoleAssistant, "hi"),
		incomingMsg("m3", chatModels.RoleAssistant, "bye"),
	}

	al := alignSuffix(existing, incoming, policy)
	if al.Fallback {
		t.Fatalf("expected lenient policy to tolerate a tail role change, got fallback %q", al.Reason)
	}
	if al.Overlap != 3 {
		t.Errorf("Overlap = %d, want 3", al.Overlap)
	}
}
