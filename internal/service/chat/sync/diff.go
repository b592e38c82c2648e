package sync

import (
	chatModels "cadence/internal/domain/models/chat"
)

// updateOp is one in-place mutation of a stored message: new content and/or
// a tool-metadata diff. Seq and id never change.
type updateOp struct {
	existing *chatModels.Message
	content  *chatModels.Content
	toolDiff *chatModels.ToolDiff
}

// messageDiff is the classified change-set for a trusted alignment.
// deleteAfterSeq is the seq of the last covered stored message; -1 means no
// tail deletion. Deletions are always whole-tail, never interior.
type messageDiff struct {
	updates        []updateOp
	inserts        []chatModels.IncomingMessage
	deleteAfterSeq int
}

func (d *messageDiff) empty() bool {
	return len(d.updates) == 0 && len(d.inserts) == 0 && d.deleteAfterSeq < 0
}

// classify walks the aligned window in lockstep, using the stored seq as the
// authoritative anchor, and buckets every position:
//
//   - unchanged: identical content and tool metadata - skipped entirely
//   - update: same message, diverging content or tool metadata
//   - insert: incoming entries beyond the stored tail
//   - delete: stored entries beyond the incoming length (regenerate/shorten)
//
// Updates never touch a message's role: a role divergence tolerated by a
// lenient policy keeps the stored role.
func classify(existing []chatModels.Message, incoming []chatModels.IncomingMessage, al alignment) *messageDiff {
	d := &messageDiff{deleteAfterSeq: -1}

	for j := 0; j < al.Overlap; j++ {
		e := &existing[al.AnchorOffset+j]
		in := &incoming[j]

		var op updateOp
		if !e.Content.Equal(in.Content) {
			content := in.Content
			op.content = &content
		}
		if !chatModels.ToolCallsEqual(e.ToolCalls, in.ToolCalls) || !chatModels.ToolOutputsEqual(e.ToolOutputs, in.ToolOutputs) {
			op.toolDiff = computeToolDiff(e, in)
		}
		if op.content != nil || !op.toolDiff.Empty() {
			op.existing = e
			d.updates = append(d.updates, op)
		}
	}

	// Incoming entries beyond the window extend the history.
	if len(incoming) > al.Overlap {
		d.inserts = incoming[al.Overlap:]
	}

	// Stored entries beyond the covered range are a shortened tail.
	coveredEnd := al.AnchorOffset + al.Overlap
	if coveredEnd < len(existing) {
		if coveredEnd == 0 {
			d.deleteAfterSeq = 0
		} else {
			d.deleteAfterSeq = existing[coveredEnd-1].Seq
		}
	}

	return d
}

// computeToolDiff prefers a granular child diff - matching calls and outputs
// by call id - and falls back to replacing all tool metadata for the message
// when the structure changed too much to diff safely (ids absent, or the
// call count shifted without stable ids to anchor on).
func computeToolDiff(e *chatModels.Message, in *chatModels.IncomingMessage) *chatModels.ToolDiff {
	diff := &chatModels.ToolDiff{}

	callsOK := diffCalls(e.ToolCalls, in.ToolCalls, diff)
	outputsOK := diffOutputs(e.ToolOutputs, in.ToolOutputs, diff)
	if callsOK && outputsOK {
		return diff
	}

	return &chatModels.ToolDiff{
		ReplaceAll: true,
		Calls:      in.ToolCalls,
		Outputs:    in.ToolOutputs,
	}
}

func diffCalls(stored, incoming []chatModels.ToolCall, diff *chatModels.ToolDiff) bool {
	if !allCallsHaveIDs(stored) || !allCallsHaveIDs(incoming) {
		// Without stable ids an equal-length set can still be diffed by
		// index; anything else is unpredictable.
		if len(stored) != len(incoming) {
			return len(stored) == 0 && len(incoming) == 0
		}
		for i := range incoming {
			if stored[i].Name != incoming[i].Name || !chatModels.JSONValuesEqual(stored[i].Input, incoming[i].Input) {
				upd := incoming[i]
				upd.CallID = stored[i].CallID
				upd.CallIndex = stored[i].CallIndex
				if upd.CallID == "" {
					return false
				}
				diff.CallsToUpdate = append(diff.CallsToUpdate, upd)
			}
		}
		return true
	}

	storedByID := make(map[string]chatModels.ToolCall, len(stored))
	for _, c := range stored {
		storedByID[c.CallID] = c
	}
	seen := make(map[string]bool, len(incoming))
	for _, c := range incoming {
		seen[c.CallID] = true
		prev, ok := storedByID[c.CallID]
		if !ok {
			diff.CallsToInsert = append(diff.CallsToInsert, c)
			continue
		}
		if prev.Name != c.Name || !chatModels.JSONValuesEqual(prev.Input, c.Input) || prev.CallIndex != c.CallIndex {
			diff.CallsToUpdate = append(diff.CallsToUpdate, c)
		}
	}
	for _, c := range stored {
		if !seen[c.CallID] {
			diff.CallIDsToDelete = append(diff.CallIDsToDelete, c.CallID)
		}
	}
	return true
}

func diffOutputs(stored, incoming []chatModels.ToolOutput, diff *chatModels.ToolDiff) bool {
	if !allOutputsHaveIDs(stored) || !allOutputsHaveIDs(incoming) {
		if len(stored) != len(incoming) {
			return len(stored) == 0 && len(incoming) == 0
		}
		for i := range incoming {
			if !chatModels.JSONValuesEqual(stored[i].Result, incoming[i].Result) || stored[i].IsError != incoming[i].IsError {
				upd := incoming[i]
				upd.CallID = stored[i].CallID
				upd.CallIndex = stored[i].CallIndex
				if upd.CallID == "" {
					return false
				}
				diff.OutputsToUpdate = append(diff.OutputsToUpdate, upd)
			}
		}
		return true
	}

	storedByID := make(map[string]chatModels.ToolOutput, len(stored))
	for _, o := range stored {
		storedByID[o.CallID] = o
	}
	seen := make(map[string]bool, len(incoming))
	for _, o := range incoming {
		seen[o.CallID] = true
		prev, ok := storedByID[o.CallID]
		if !ok {
			diff.OutputsToInsert = append(diff.OutputsToInsert, o)
			continue
		}
		if !chatModels.JSONValuesEqual(prev.Result, o.Result) || prev.IsError != o.IsError || prev.CallIndex != o.CallIndex {
			diff.OutputsToUpdate = append(diff.OutputsToUpdate, o)
		}
	}
	for _, o := range stored {
		if !seen[o.CallID] {
			diff.OutputIDsToDelete = append(diff.OutputIDsToDelete, o.CallID)
		}
	}
	return true
}

func allCallsHaveIDs(calls []chatModels.ToolCall) bool {
	for _, c := range calls {
		if c.CallID == "" {
			return false
		}
	}
	return true
}

func allOutputsHaveIDs(outputs []chatModels.ToolOutput) bool {
	for _, o := range outputs {
		if o.CallID == "" {
			return false
		}
	}
	return true
}
