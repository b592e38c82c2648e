package sync

import (
	"encoding/json"
	"testing"

	chatModels "cadence/internal/domain/models/chat"
)

func TestClassifyInsertAtEnd(t *testing.T) {
	existing := []chatModels.Message{
		storedMsg("m1", 1, chatModels.RoleUser, "hello"),
		storedMsg("m2", 2, chatModels.RoleAssistant, "hi"),
	}
	incoming := []chatModels.IncomingMessage{
		incomingMsg("m1", chatModels.RoleUser, "hello"),
		incomingMsg("m2", chatModels.RoleAssistant, "hi"),
		incomingMsg("m3", chatModels.RoleUser, "more"),
	}

	d := classify(existing, incoming, alignment{AnchorOffset: 0, Overlap: 2})

	if len(d.updates) != 0 {
		t.Errorf("updates = %d, want 0", len(d.updates))
	}
	if len(d.inserts) != 1 || d.inserts[0].ID != "m3" {
		t.Errorf("inserts = %+v, want [m3]", d.inserts)
	}
	if d.deleteAfterSeq != -1 {
		t.Errorf("deleteAfterSeq = %d, want -1", d.deleteAfterSeq)
	}
}

func TestClassifyUpdateInWindow(t *testing.T) {
	existing := []chatModels.Message{
		storedMsg("m1", 1, chatModels.RoleUser, "hello"),
		storedMsg("m2", 2, chatModels.RoleAssistant, "hi"),
	}
	incoming := []chatModels.IncomingMessage{
		incomingMsg("m1", chatModels.RoleUser, "hello"),
		incomingMsg("m2", chatModels.RoleAssistant, "regenerated reply"),
	}

	d := classify(existing, incoming, alignment{AnchorOffset: 0, Overlap: 2})

	if len(d.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(d.updates))
	}
	up := d.updates[0]
	if up.existing.ID != "m2" {
		t.Errorf("update target = %s, want m2", up.existing.ID)
	}
	if up.content == nil || !up.content.Equal(chatModels.TextContent("regenerated reply")) {
		t.Errorf("update content = %+v, want regenerated reply", up.content)
	}
	if up.existing.Seq != 2 {
		t.Errorf("seq must be preserved, got %d", up.existing.Seq)
	}
	if len(d.inserts) != 0 || d.deleteAfterSeq != -1 {
		t.Errorf("unexpected inserts/deletes: %+v / %d", d.inserts, d.deleteAfterSeq)
	}
}

func TestClassifyShortenedTail(t *testing.T) {
	existing := []chatModels.Message{
		storedMsg("m1", 1, chatModels.RoleUser, "hello"),
		storedMsg("m2", 2, chatModels.RoleAssistant, "hi"),
		storedMsg("m3", 3, chatModels.RoleUser, "scrapped"),
		storedMsg("m4", 4, chatModels.RoleAssistant, "also scrapped"),
	}
	incoming := []chatModels.IncomingMessage{
		incomingMsg("m1", chatModels.RoleUser, "hello"),
		incomingMsg("m2", chatModels.RoleAssistant, "hi"),
	}

	d := classify(existing, incoming, alignment{AnchorOffset: 0, Overlap: 2})

	if d.deleteAfterSeq != 2 {
		t.Errorf("deleteAfterSeq = %d, want 2", d.deleteAfterSeq)
	}
	if len(d.updates) != 0 || len(d.inserts) != 0 {
		t.Errorf("unexpected updates/inserts: %+v / %+v", d.updates, d.inserts)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	existing := []chatModels.Message{
		storedMsg("m1", 1, chatModels.RoleUser, "hello"),
		storedMsg("m2", 2, chatModels.RoleAssistant, "hi"),
	}
	incoming := []chatModels.IncomingMessage{
		incomingMsg("m1", chatModels.RoleUser, "hello"),
		incomingMsg("m2", chatModels.RoleAssistant, "hi"),
	}

	d := classify(existing, incoming, alignment{AnchorOffset: 0, Overlap: 2})
	if !d.empty() {
		t.Errorf("identical lists must classify to an empty diff, got %+v", d)
	}
}

// A resync replays tool metadata exactly as the client holds it, while the
// stored copy has been rewritten by the jsonb columns (whitespace stripped,
// object keys reordered). That rendering difference must not produce updates.
func TestClassifyIdempotentAfterJSONBRoundTrip(t *testing.T) {
	stored := storedMsg("m2", 2, chatModels.RoleAssistant, "hi")
	stored.ToolCalls = []chatModels.ToolCall{
		{CallID: "c1", CallIndex: 0, Name: "search", Input: json.RawMessage(`{"limit": 3, "q": "weather"}`)},
	}
	stored.ToolOutputs = []chatModels.ToolOutput{
		{CallID: "c1", CallIndex: 0, Result: json.RawMessage(`{"temp": 21}`)},
	}
	existing := []chatModels.Message{
		storedMsg("m1", 1, chatModels.RoleUser, "hello"),
		stored,
	}

	resent := incomingMsg("m2", chatModels.RoleAssistant, "hi")
	resent.ToolCalls = []chatModels.ToolCall{
		{CallID: "c1", CallIndex: 0, Name: "search", Input: json.RawMessage(`{"q":"weather","limit":3}`)},
	}
	resent.ToolOutputs = []chatModels.ToolOutput{
		{CallID: "c1", CallIndex: 0, Result: json.RawMessage(`{"temp":21}`)},
	}
	incoming := []chatModels.IncomingMessage{
		incomingMsg("m1", chatModels.RoleUser, "hello"),
		resent,
	}

	d := classify(existing, incoming, alignment{AnchorOffset: 0, Overlap: 2})
	if !d.empty() {
		t.Errorf("replayed tool metadata must classify to an empty diff, got %+v", d)
	}
}

func TestComputeToolDiffGranular(t *testing.T) {
	input1 := json.RawMessage(`{"q":"weather"}`)
	input2 := json.RawMessage(`{"q":"news"}`)

	e := &chatModels.Message{
		ID:   "m1",
		Role: chatModels.RoleAssistant,
		ToolCalls: []chatModels.ToolCall{
			{CallID: "c1", CallIndex: 0, Name: "search", Input: input1},
			{CallID: "c2", CallIndex: 1, Name: "search", Input: input2},
		},
		ToolOutputs: []chatModels.ToolOutput{
			{CallID: "c1", CallIndex: 0, Result: json.RawMessage(`"sunny"`)},
		},
	}
	in := &chatModels.IncomingMessage{
		ID:   "m1",
		Role: chatModels.RoleAssistant,
		ToolCalls: []chatModels.ToolCall{
			{CallID: "c1", CallIndex: 0, Name: "search", Input: json.RawMessage(`{"q":"weather today"}`)},
			{CallID: "c3", CallIndex: 1, Name: "fetch", Input: nil},
		},
		ToolOutputs: []chatModels.ToolOutput{
			{CallID: "c1", CallIndex: 0, Result: json.RawMessage(`"sunny"`)},
			{CallID: "c3", CallIndex: 1, Result: json.RawMessage(`"<html>"`)},
		},
	}

	diff := computeToolDiff(e, in)

	if diff.ReplaceAll {
		t.Fatal("expected granular diff, got ReplaceAll")
	}
	if len(diff.CallsToUpdate) != 1 || diff.CallsToUpdate[0].CallID != "c1" {
		t.Errorf("CallsToUpdate = %+v, want [c1]", diff.CallsToUpdate)
	}
	if len(diff.CallsToInsert) != 1 || diff.CallsToInsert[0].CallID != "c3" {
		t.Errorf("CallsToInsert = %+v, want [c3]", diff.CallsToInsert)
	}
	if len(diff.CallIDsToDelete) != 1 || diff.CallIDsToDelete[0] != "c2" {
		t.Errorf("CallIDsToDelete = %+v, want [c2]", diff.CallIDsToDelete)
	}
	if len(diff.OutputsToInsert) != 1 || diff.OutputsToInsert[0].CallID != "c3" {
		t.Errorf("OutputsToInsert = %+v, want [c3]", diff.OutputsToInsert)
	}
	if len(diff.OutputsToUpdate) != 0 || len(diff.OutputIDsToDelete) != 0 {
		t.Errorf("unexpected output changes: %+v / %+v", diff.OutputsToUpdate, diff.OutputIDsToDelete)
	}
}

func TestComputeToolDiffReplaceAllWithoutIDs(t *testing.T) {
	e := &chatModels.Message{
		ID:   "m1",
		Role: chatModels.RoleAssistant,
		ToolCalls: []chatModels.ToolCall{
			{CallIndex: 0, Name: "search"},
		},
	}
	in := &chatModels.IncomingMessage{
		ID:   "m1",
		Role: chatModels.RoleAssistant,
		ToolCalls: []chatModels.ToolCall{
			{CallIndex: 0, Name: "search"},
			{CallIndex: 1, Name: "fetch"},
		},
	}

	diff := computeToolDiff(e, in)

	if !diff.ReplaceAll {
		t.Fatal("id-less call sets of different length must replace wholesale")
	}
	if len(diff.Calls) != 2 {
		t.Errorf("Calls = %d, want 2", len(diff.Calls))
	}
}
