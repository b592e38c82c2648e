package chat

import (
	"encoding/json"
	"sort"
	"strconv"
)

// ToolCall is a structured tool invocation attached to an assistant message.
// CallID links the call to its output; CallIndex is the position of the call
// within the message and is the matching fallback when ids are absent.
type ToolCall struct {
	CallID    string          `json:"call_id,omitempty"`
	CallIndex int             `json:"call_index"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input,omitempty"`
}

// ToolOutput is the recorded result of a tool call, attached to the owning
// assistant message or to a follow-up tool message.
type ToolOutput struct {
	CallID    string          `json:"call_id,omitempty"`
	CallIndex int             `json:"call_index"`
	Result    json.RawMessage `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// ToolDiff is a minimal child-record change-set for one message's tool
// metadata. When ReplaceAll is set the granular fields are ignored and the
// stored metadata is dropped and rewritten from Calls/Outputs.
type ToolDiff struct {
	ReplaceAll bool
	Calls      []ToolCall
	Outputs    []ToolOutput

	CallsToInsert   []ToolCall
	CallsToUpdate   []ToolCall
	CallIDsToDelete []string

	OutputsToInsert   []ToolOutput
	OutputsToUpdate   []ToolOutput
	OutputIDsToDelete []string
}

// Empty reports whether the diff would perform no writes.
func (d *ToolDiff) Empty() bool {
	if d == nil {
		return true
	}
	if d.ReplaceAll {
		return false
	}
	return len(d.CallsToInsert) == 0 && len(d.CallsToUpdate) == 0 && len(d.CallIDsToDelete) == 0 &&
		len(d.OutputsToInsert) == 0 && len(d.OutputsToUpdate) == 0 && len(d.OutputIDsToDelete) == 0
}

// JSONValuesEqual reports whether two raw JSON payloads encode the same
// value. Stored tool metadata round-trips through jsonb columns, which
// canonicalize whitespace and key order, so byte comparison would flag a
// resend of unchanged metadata as divergent.
func JSONValuesEqual(a, b json.RawMessage) bool {
	return canonicalJSON(a) == canonicalJSON(b)
}

// canonicalJSON renders a raw JSON value in a normalized form (sorted object
// keys, no insignificant whitespace). Empty and invalid payloads compare by
// their raw bytes.
func canonicalJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// ToolCallsEqual compares two call sets ignoring order, by call id when
// present and by index otherwise. Inputs compare as JSON values, not bytes.
func ToolCallsEqual(a, b []ToolCall) bool {
	if len(a) != len(b) {
		return false
	}
	ka, kb := make([]string, len(a)), make([]string, len(b))
	for i, c := range a {
		ka[i] = toolCallKey(c.CallID, c.CallIndex) + "|" + c.Name + "|" + canonicalJSON(c.Input)
	}
	for i, c := range b {
		kb[i] = toolCallKey(c.CallID, c.CallIndex) + "|" + c.Name + "|" + canonicalJSON(c.Input)
	}
	sort.Strings(ka)
	sort.Strings(kb)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

// ToolOutputsEqual compares two output sets ignoring order.
func ToolOutputsEqual(a, b []ToolOutput) bool {
	if len(a) != len(b) {
		return false
	}
	ka, kb := make([]string, len(a)), make([]string, len(b))
	for i, o := range a {
		ka[i] = toolCallKey(o.CallID, o.CallIndex) + "|" + canonicalJSON(o.Result) + "|" + boolKey(o.IsError)
	}
	for i, o := range b {
		kb[i] = toolCallKey(o.CallID, o.CallIndex) + "|" + canonicalJSON(o.Result) + "|" + boolKey(o.IsError)
	}
	sort.Strings(ka)
	sort.Strings(kb)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

func toolCallKey(callID string, callIndex int) string {
	if callID != "" {
		return "id:" + callID
	}
	return "ix:" + strconv.Itoa(callIndex)
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
