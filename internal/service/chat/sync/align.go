package sync

import (
	"cadence/internal/config"
	chatModels "cadence/internal/domain/models/chat"
)

// Fallback reasons recorded on rejected alignments.
const (
	reasonEmptyIncoming      = "empty_incoming"
	reasonRoleMismatch       = "role_mismatch"
	reasonIDConflict         = "id_conflict"
	reasonInteriorDivergence = "interior_divergence"
	reasonLowMatchRatio      = "low_match_ratio"
	reasonNoCandidate        = "no_candidate"
)

// alignment is the inferred correspondence between the stored log and an
// incoming list. AnchorOffset is the number of leading stored messages the
// incoming list does not cover (assumed untouched); Overlap is the length of
// the window compared positionally. When Fallback is set the caller must not
// diff and should clear-and-rewrite instead.
type alignment struct {
	Fallback     bool
	Reason       string
	AnchorOffset int
	Overlap      int
}

// matchKind classifies one positional comparison inside a candidate window.
type matchKind int

const (
	matchFull matchKind = iota // same message, same normalized content
	matchSameMessage           // same message (by id or position), content diverged
	matchRoleConflict          // roles differ - never alignable
	matchIDConflict            // both carry ids and they differ - not the same message
)

// compareEntries compares a stored message against an incoming one. When both
// sides carry an id the id decides identity and the signature decides
// divergence; legacy id-less entries are matched by normalized signature
// alone, never by array index trust.
func compareEntries(e *chatModels.Message, in *chatModels.IncomingMessage) matchKind {
	if e.Role != in.Role {
		return matchRoleConflict
	}
	if e.ID != "" && in.ID != "" {
		if e.ID != in.ID {
			return matchIDConflict
		}
		if e.Content.Equal(in.Content) {
			return matchFull
		}
		return matchSameMessage
	}
	if e.Content.Equal(in.Content) {
		return matchFull
	}
	return matchSameMessage
}

// candidate is one evaluated anchor offset.
type candidate struct {
	valid        bool
	reason       string
	anchorOffset int
	window       int
	matchedSigs  int
	prefixLen    int // length of the fully-matched prefix of the window
}

// evaluateCandidate scores one anchor offset. A candidate is usable only when
// no role or id conflict occurs inside the window and the matched positions
// form a prefix of it: a mismatch followed by a match means the divergence is
// interior, which is never safe to apply (only tail divergence is).
func evaluateCandidate(existing []chatModels.Message, incoming []chatModels.IncomingMessage, offset int, policy config.SyncPolicy) candidate {
	c := candidate{anchorOffset: offset}

	window := len(existing) - offset
	if len(incoming) < window {
		window = len(incoming)
	}
	c.window = window

	seenMismatch := false
	for j := 0; j < window; j++ {
		kind := compareEntries(&existing[offset+j], &incoming[j])
		switch kind {
		case matchRoleConflict:
			if policy.StrictRoles {
				c.reason = reasonRoleMismatch
				return c
			}
			seenMismatch = true
		case matchIDConflict:
			c.reason = reasonIDConflict
			return c
		case matchFull:
			if seenMismatch {
				c.reason = reasonInteriorDivergence
				return c
			}
			c.matchedSigs++
			c.prefixLen++
		case matchSameMessage:
			seenMismatch = true
		}
	}

	if window > 0 {
		ratio := float64(c.matchedSigs) / float64(window)
		if ratio < policy.MinMatchRatio {
			c.reason = reasonLowMatchRatio
			return c
		}
	}

	c.valid = true
	return c
}

// alignSuffix computes the best-effort alignment between the stored log and
// an incoming list.
//
// Two anchor offsets can explain a coherent incoming list: the tail-covering
// offset (the client sent only the most recent messages, the leading stored
// ones are untouched) and offset zero (the client sent the complete desired
// state, so stored messages beyond it are a shortened tail). Both are scored
// and the one matching more positions wins, preferring the non-destructive
// tail-covering reading on a tie. Anything else - interior reordering,
// interior gaps, conflicting ids, role mismatches, too little overlap - is
// rejected and resolved by the caller's clear-and-rewrite fallback.
func alignSuffix(existing []chatModels.Message, incoming []chatModels.IncomingMessage, policy config.SyncPolicy) alignment {
	m, n := len(existing), len(incoming)

	if n == 0 {
		if m == 0 {
			return alignment{}
		}
		return alignment{Fallback: true, Reason: reasonEmptyIncoming}
	}
	if m == 0 {
		// Fresh conversation: everything inserts, nothing to compare.
		return alignment{}
	}

	offsets := []int{0}
	if m > n {
		// Tail-covering offset first so it wins ties.
		offsets = []int{m - n, 0}
	}

	var best candidate
	var firstReason string
	for _, offset := range offsets {
		c := evaluateCandidate(existing, incoming, offset, policy)
		if !c.valid {
			if firstReason == "" {
				firstReason = c.reason
			}
			continue
		}
		if !best.valid || c.matchedSigs > best.matchedSigs {
			best = c
		}
	}

	if !best.valid {
		if firstReason == "" {
			firstReason = reasonNoCandidate
		}
		return alignment{Fallback: true, Reason: firstReason}
	}

	return alignment{AnchorOffset: best.anchorOffset, Overlap: best.window}
}
