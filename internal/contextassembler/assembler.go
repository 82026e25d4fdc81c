// Package contextassembler implements the Context Assembler (C5):
// reconstructing a ConversationThread into a prompt prefix under a token
// budget, newest-first prioritized, with cross-tool primary-field mapping.
//
// The windowing strategy (walk newest-first, drop the oldest first, never
// truncate mid-turn) and the chars-per-token approximation are adapted from
// the teacher's internal/agent/decide.go buildStepSummary/perStepOutputBudget
// pair, generalized from "recent tool steps" to "turns retained under a
// reserve fraction".
package contextassembler

import (
	"fmt"
	"strings"
	"time"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/conversation"
)

// charsPerToken is the approximate character-to-token ratio used for budget
// estimation, mirroring the teacher's conservative middle-ground constant.
const charsPerToken = 4

// Reserves are the budget-reservation fractions of a model's context window,
// tunable per capability.Category but deterministic once set (spec.md §4.5).
type Reserves struct {
	ResponseReserve float64 // fraction reserved for the model's output
	FileReserve     float64 // fraction reserved for new files embedded this turn
	// HistoryReserve is implicit: 1 - ResponseReserve - FileReserve
}

// defaultReserves gives every category a baseline; DEEP_REASONING gets a
// larger response reserve since those models are invoked for long-form
// analysis, FAST gets a larger history reserve since its callers lean on
// conversational continuity more than on room to embed new files.
var defaultReserves = map[capability.Category]Reserves{
	capability.CategoryFast:          {ResponseReserve: 0.20, FileReserve: 0.25},
	capability.CategoryBalanced:      {ResponseReserve: 0.25, FileReserve: 0.30},
	capability.CategoryDeepReasoning: {ResponseReserve: 0.35, FileReserve: 0.25},
}

// ReservesFor returns the configured Reserves for cat, falling back to the
// BALANCED profile for an unrecognized category.
func ReservesFor(cat capability.Category) Reserves {
	if r, ok := defaultReserves[cat]; ok {
		return r
	}
	return defaultReserves[capability.CategoryBalanced]
}

// HistoryBudgetChars returns the character budget available for assembled
// conversation history, given a model's context window (in tokens) and its
// category's reserve fractions.
func HistoryBudgetChars(contextWindowTokens int, cat capability.Category) int {
	if contextWindowTokens <= 0 {
		return 0
	}
	r := ReservesFor(cat)
	historyFraction := 1 - r.ResponseReserve - r.FileReserve
	if historyFraction < 0 {
		historyFraction = 0
	}
	return int(float64(contextWindowTokens) * charsPerToken * historyFraction)
}

// FileBudgetChars returns the character budget available for newly embedded
// files this turn, mirroring HistoryBudgetChars but under the FileReserve
// fraction instead of the implicit history fraction (spec.md §4.6: the file
// embedder draws from "its own reserved slice of the window, sized the same
// way the history budget is").
func FileBudgetChars(contextWindowTokens int, cat capability.Category) int {
	if contextWindowTokens <= 0 {
		return 0
	}
	r := ReservesFor(cat)
	return int(float64(contextWindowTokens) * charsPerToken * r.FileReserve)
}

// MaxImages bounds how many of the most recent image references are
// reattached; older ones become textual placeholders.
const MaxImages = 5

// Assembled is the result of reconstructing a thread into a prompt prefix.
type Assembled struct {
	Text           string    // chronologically ordered prior turns, newest-first trimmed
	ReattachImages []string  // most recent image paths/refs, budget-limited
	DroppedTurns   int       // count of turns omitted for budget reasons
	EmbeddedFiles  map[string]time.Time // path -> timestamp of the turn that last referenced it; feeds fileembed's staleness check directly
}

// Assemble reconstructs thread into a prompt prefix under charBudget,
// walking turns newest-first and emitting them back in chronological order.
// Within a retained turn content is never truncated; whole turns are dropped
// from the oldest end once the budget would be exceeded.
func Assemble(thread conversation.Thread, charBudget int) Assembled {
	if charBudget <= 0 || len(thread.Turns) == 0 {
		return Assembled{EmbeddedFiles: map[string]time.Time{}}
	}

	retained := make([]conversation.Turn, 0, len(thread.Turns))
	used := 0
	for i := len(thread.Turns) - 1; i >= 0; i-- {
		turn := thread.Turns[i]
		rendered := renderTurn(turn)
		if used+len(rendered) > charBudget && len(retained) > 0 {
			break
		}
		retained = append(retained, turn)
		used += len(rendered)
	}
	dropped := len(thread.Turns) - len(retained)

	// retained was built newest-first; reverse to chronological order.
	for i, j := 0, len(retained)-1; i < j; i, j = i+1, j-1 {
		retained[i], retained[j] = retained[j], retained[i]
	}

	seen := make(map[string]time.Time)
	var sb strings.Builder
	for _, turn := range retained {
		sb.WriteString(renderTurn(turn))
		for _, f := range turn.Files {
			// Later turns in chronological order overwrite earlier
			// timestamps, so seen always holds the most recent reference.
			seen[f] = turn.Timestamp
		}
	}

	images := mostRecentImages(retained, MaxImages)

	return Assembled{
		Text:           sb.String(),
		ReattachImages: images,
		DroppedTurns:   dropped,
		EmbeddedFiles:  seen,
	}
}

func renderTurn(t conversation.Turn) string {
	var sb strings.Builder
	if t.ToolName != "" {
		fmt.Fprintf(&sb, "--- %s turn (tool: %s", t.Role, t.ToolName)
	} else {
		fmt.Fprintf(&sb, "--- %s turn (", t.Role)
	}
	if t.ModelName != "" {
		fmt.Fprintf(&sb, ", model: %s", t.ModelName)
	}
	sb.WriteString(") ---\n")
	sb.WriteString(t.Content)
	sb.WriteString("\n")
	return sb.String()
}

// mostRecentImages returns up to n distinct image references from the end
// of retained, most-recent-first collapsed back to chronological order.
func mostRecentImages(retained []conversation.Turn, n int) []string {
	var out []string
	seen := make(map[string]bool)
	for i := len(retained) - 1; i >= 0 && len(out) < n; i-- {
		imgs := retained[i].Images
		for k := len(imgs) - 1; k >= 0 && len(out) < n; k-- {
			img := imgs[k]
			if seen[img] {
				continue
			}
			seen[img] = true
			out = append(out, img)
		}
	}
	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// WriteToPrimaryField reconstructs the thread text into whichever field
// the receiving tool declares as primary (spec.md §4.5 cross-tool
// continuation), regardless of which tool produced prior turns.
func WriteToPrimaryField(assembled Assembled, currentContent string) string {
	if assembled.Text == "" {
		return currentContent
	}
	var sb strings.Builder
	sb.WriteString(assembled.Text)
	sb.WriteString("--- current turn ---\n")
	sb.WriteString(currentContent)
	return sb.String()
}
