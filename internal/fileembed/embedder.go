// Package fileembed implements the File Embedder (C6): deduplicated,
// priority-budgeted embedding of file contents into a prompt section.
//
// Path resolution, the 1MB read-limit idiom, and binary detection adapt
// internal/tool/builtin/file.go's FileReadTool (open-then-stat to avoid a
// TOCTOU race, LimitReader read cap); directory expansion walk order
// adapts internal/tool/builtin/file_grep.go's filepath.WalkDir usage,
// generalized from "search for a pattern" to "collect embeddable files".
package fileembed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// maxFileSize mirrors the teacher's file.go read-limit constant.
const maxFileSize = 1 << 20

// ErrFilePathNotAbsolute is returned when a caller-supplied path is relative
// (spec.md §4.6: "Paths MUST be absolute").
var ErrFilePathNotAbsolute = errors.New("fileembed: file path must be absolute")

// PromptEscapeFilename is the filename the large-prompt escape mechanism
// recognizes on re-entry (spec.md §4.6).
const PromptEscapeFilename = "prompt.txt"

// tier is a priority bucket by file extension, highest first.
type tier int

const (
	tierSource tier = iota
	tierDocConfig
	tierPlainText
	tierLogs
	tierUnrecognized
)

// tierBudgetPct gives each tier's share of the total file budget
// (spec.md §4.6: "60% / 30% / 10% / 0% by tier").
var tierBudgetPct = map[tier]float64{
	tierSource:    0.60,
	tierDocConfig: 0.30,
	tierPlainText: 0.10,
	tierLogs:      0.0,
}

var sourceExts = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".rs": true,
	".rb": true, ".php": true, ".cs": true, ".kt": true, ".swift": true, ".sh": true,
}

var docConfigExts = map[string]bool{
	".md": true, ".rst": true, ".yaml": true, ".yml": true, ".json": true,
	".toml": true, ".ini": true, ".xml": true,
}

var plainTextExts = map[string]bool{
	".txt": true, ".csv": true,
}

var logExts = map[string]bool{
	".log": true,
}

func tierFor(path string) tier {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case sourceExts[ext]:
		return tierSource
	case docConfigExts[ext]:
		return tierDocConfig
	case plainTextExts[ext]:
		return tierPlainText
	case logExts[ext]:
		return tierLogs
	default:
		return tierUnrecognized
	}
}

// skipDirs mirrors the teacher's search-walk skip list.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, ".idea": true, ".vscode": true,
	"vendor": true, "__pycache__": true, ".cache": true,
}

// recognizedForExpansion reports whether path has an extension the walker
// collects when expanding a directory argument.
func recognizedForExpansion(path string) bool {
	return tierFor(path) != tierUnrecognized
}

// Result is the output of Embed: a single rendered block plus the ordered
// list of paths actually embedded with content (as opposed to listed bare).
type Result struct {
	Block           string
	EmbeddedPaths   []string
	LargePromptPath string // not set by Embed; ResolveLargePromptEscape handles the escape file
}

// Embed renders paths (files and/or directories) into a single section
// under budgetChars, honoring extension-tier priority, cross-turn dedup via
// alreadyEmbedded, and line-numbering when withLineNumbers is set.
//
// alreadyEmbedded maps a path to the timestamp of the turn that last
// embedded it. A file whose on-disk mtime is newer than that timestamp is
// re-embedded rather than collapsed to a bare reference, since the
// conversation's record of its content is stale.
func Embed(paths []string, budgetChars int, alreadyEmbedded map[string]time.Time, label string, withLineNumbers bool) (Result, error) {
	expanded, err := expandPaths(paths)
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	if label != "" {
		fmt.Fprintf(&sb, "=== %s ===\n", label)
	}

	byTier := make(map[tier][]string)
	for _, p := range expanded {
		byTier[tierFor(p)] = append(byTier[tierFor(p)], p)
	}

	var embedded []string
	for t := tierSource; t <= tierLogs; t++ {
		files := byTier[t]
		if len(files) == 0 {
			continue
		}
		if tierBudgetPct[t] == 0 {
			for _, p := range files {
				fmt.Fprintf(&sb, "--- %s (not embedded: no budget for this tier) ---\n", p)
			}
			continue
		}
		tierBudget := int(float64(budgetChars) * tierBudgetPct[t])
		perFileBudget := tierBudget / len(files)

		for _, p := range files {
			if embeddedAt, ok := alreadyEmbedded[p]; ok && !isStale(p, embeddedAt) {
				fmt.Fprintf(&sb, "--- %s [already in conversation] ---\n", p)
				continue
			}
			rendered, err := renderFile(p, perFileBudget, withLineNumbers)
			if err != nil {
				fmt.Fprintf(&sb, "--- %s (error: %v) ---\n", p, err)
				continue
			}
			sb.WriteString(rendered)
			embedded = append(embedded, p)
		}
	}
	// Unrecognized-tier files (0% budget) are listed by path only.
	for _, p := range byTier[tierUnrecognized] {
		fmt.Fprintf(&sb, "--- %s (not embedded: unrecognized extension) ---\n", p)
	}

	return Result{Block: sb.String(), EmbeddedPaths: embedded}, nil
}

// isStale reports whether path's on-disk mtime is newer than embeddedAt,
// meaning the conversation's record of its content no longer reflects
// what's on disk.
func isStale(path string, embeddedAt time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().After(embeddedAt)
}

// expandPaths validates absoluteness and expands directory entries via a
// lexicographic, depth-first walk, filtering to recognized extensions.
func expandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			return nil, ErrFilePathNotAbsolute
		}
		info, err := os.Stat(p)
		if err != nil {
			out = append(out, p) // let renderFile surface the not-found error
			continue
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		var collected []string
		err = filepath.WalkDir(p, func(walkPath string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if d.Name() != filepath.Base(p) && skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if recognizedForExpansion(walkPath) {
				collected = append(collected, walkPath)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(collected)
		out = append(out, collected...)
	}
	return out, nil
}

// renderFile reads path (open-then-stat to avoid a TOCTOU race, mirroring
// the teacher's FileReadTool), truncating at a line boundary under budget
// and rendering a binary placeholder when the content isn't valid UTF-8.
func renderFile(path string, budget int, withLineNumbers bool) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.New("path is a directory")
	}
	readLimit := info.Size()
	if readLimit > maxFileSize {
		readLimit = maxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(f, readLimit))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s ---\n", path)

	if !utf8.Valid(data) {
		sb.WriteString("[binary file, not embedded]\n")
		return sb.String(), nil
	}

	lines := strings.Split(string(data), "\n")
	truncated := false
	if budget > 0 {
		kept := 0
		used := 0
		for i, line := range lines {
			lineLen := len(line) + 1
			if used+lineLen > budget && i > 0 {
				truncated = true
				break
			}
			used += lineLen
			kept = i + 1
		}
		if kept < len(lines) {
			lines = lines[:kept]
		}
	}

	for i, line := range lines {
		if withLineNumbers {
			fmt.Fprintf(&sb, "%5d| %s\n", i+1, line)
		} else {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	if truncated {
		sb.WriteString("[... truncated at line boundary, file continues ...]\n")
	}
	return sb.String(), nil
}

// ResolveLargePromptEscape detects the large-prompt escape filename among
// files and, if present, loads its content as the effective prompt and
// removes it from the embedded-files set (spec.md §4.6).
func ResolveLargePromptEscape(files []string) (effectivePrompt string, remaining []string, found bool, err error) {
	for _, p := range files {
		if filepath.Base(p) == PromptEscapeFilename {
			data, readErr := os.ReadFile(p)
			if readErr != nil {
				return "", nil, false, readErr
			}
			return string(data), removeOne(files, p), true, nil
		}
	}
	return "", files, false, nil
}

func removeOne(files []string, target string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if f != target {
			out = append(out, f)
		}
	}
	return out
}

// ExceedsTransportBudget reports whether text exceeds the MCP transport's
// per-request character cap, triggering the large-prompt escape.
func ExceedsTransportBudget(text string, transportBudgetChars int) bool {
	return len(text) > transportBudgetChars
}
