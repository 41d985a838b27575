package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength = 120
	MaxLabelLength = 64
	MaxLabels      = 20
	MaxBioLength   = 1000
	MaxNameLength  = 100
)

// ValidateTitle trims title and checks it is present and short enough.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("title must not exceed %d characters", MaxTitleLength)
	}
	return title, nil
}

// NormalizeLabels trims every value, drops empty ones and removes
// case-insensitive duplicates keeping the first spelling. A nil input stays
// nil so callers can tell "not supplied" from "cleared".
func NormalizeLabels(field string, values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if utf8.RuneCountInString(v) > MaxLabelLength {
			return nil, fmt.Errorf("%s entries must not exceed %d characters", field, MaxLabelLength)
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	if len(out) > MaxLabels {
		return nil, fmt.Errorf("at most %d %s are allowed", MaxLabels, field)
	}
	return out, nil
}

// SplitLabels parses a comma separated form value.
func SplitLabels(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}

// ValidateBio checks the profile bio length.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return fmt.Errorf("bio must not exceed %d characters", MaxBioLength)
	}
	return nil
}

// ValidateName checks the display name length.
func ValidateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name must not exceed %d characters", MaxNameLength)
	}
	return nil
}
