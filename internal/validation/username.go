package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Usernames double as path segments under /api/users and the web client.
var reservedUsernames = map[string]struct{}{
	"admin":   {},
	"api":     {},
	"auth":    {},
	"me":      {},
	"posts":   {},
	"users":   {},
	"search":  {},
	"saved":   {},
	"liked":   {},
	"ws":      {},
	"swagger": {},
	"metrics": {},
	"media":   {},
	"login":   {},
	"signup":  {},
}

// ValidateUsername checks if a username meets requirements
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}

	if len(username) > 30 {
		return fmt.Errorf("username must not exceed 30 characters")
	}

	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}

	if username[0] == '_' || username[0] == '-' || username[len(username)-1] == '_' || username[len(username)-1] == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}

	if _, exists := reservedUsernames[strings.ToLower(username)]; exists {
		return fmt.Errorf("username is reserved")
	}

	return nil
}
