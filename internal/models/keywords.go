package models

import (
	"fmt"
	"strings"

	"serp-similarity/internal/constants"
	errs "serp-similarity/pkg/errors"
)

// ParseKeywords turns textarea input (one keyword per line) into a clean
// list: lines are trimmed, blanks dropped, and duplicates collapsed to their
// first occurrence so matrix rows stay unique.
func ParseKeywords(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		k := strings.TrimSpace(line)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// ValidateKeywords enforces run input limits on an already-parsed list.
func ValidateKeywords(keywords []string) error {
	const op = "models.ValidateKeywords"
	if len(keywords) == 0 {
		return errs.NewValidation(op, "at least one keyword is required", nil)
	}
	if len(keywords) > constants.MaxKeywordsPerRun {
		return errs.NewValidation(op, fmt.Sprintf("too many keywords: %d (max %d)", len(keywords), constants.MaxKeywordsPerRun), nil)
	}
	for _, k := range keywords {
		if len(k) > constants.MaxKeywordLength {
			return errs.NewValidation(op, fmt.Sprintf("keyword %q exceeds %d characters", k[:32]+"...", constants.MaxKeywordLength), nil)
		}
	}
	return nil
}
