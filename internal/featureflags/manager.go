// Package featureflags evaluates per-user toggles configured through FEATURE_FLAGS.
package featureflags

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
)

// Known flags.
const (
	// LiveNotifications gates the /api/ws notification socket.
	LiveNotifications = "live_notifications"
	// LikerLists gates GET /api/posts/:id/likes.
	LikerLists = "liker_lists"
)

// Defaults apply when FEATURE_FLAGS does not mention a flag.
var Defaults = map[string]string{
	LiveNotifications: "on",
	LikerLists:        "on",
}

// Manager evaluates flags from a "name=value" list such as
// "live_notifications=25%,liker_lists=off".
type Manager struct {
	flags map[string]string
}

// NewManager merges raw over Defaults. Malformed pairs are skipped.
func NewManager(raw string) *Manager {
	out := make(map[string]string, len(Defaults))
	for k, v := range Defaults {
		out[k] = v
	}

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}

	return &Manager{flags: out}
}

// Enabled reports whether name is on for userID. Values are on/true/1,
// off/false/0 or "N%", a deterministic rollout by user. Anonymous viewers
// (userID 0) never fall inside a partial rollout. Unknown flags are off.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}

	value, ok := m.flags[normalize(name)]
	if !ok {
		return false
	}

	switch value {
	case "on", "true", "1":
		return true
	case "off", "false", "0":
		return false
	}

	pct, ok := parsePercent(value)
	if !ok || pct <= 0 {
		return false
	}
	if pct >= 100 {
		return true
	}
	if userID == 0 {
		return false
	}
	return rolloutBucket(name, userID) < pct
}

// Names lists configured flags in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.flags))
	for name := range m.flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot evaluates every configured flag for one user.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	out := make(map[string]bool, len(m.flags))
	for name := range m.flags {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func parsePercent(value string) (int, bool) {
	raw, ok := strings.CutSuffix(value, "%")
	if !ok {
		return 0, false
	}
	pct, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, userID uint) int {
	h := fnv.New32a()
	_, _ = fmt.Fprintf(h, "%s:%d", normalize(name), userID)
	return int(h.Sum32() % 100)
}
