package types

// Identifier rules shared by every inbound surface: 1-64 characters,
// letters, digits, underscore, hyphen or dot. Identities arrive already
// verified by the identity provider; this only rejects garbage before it
// reaches any component.

const maxIDLength = 64

// IsValidID reports whether s is acceptable as a participant identity.
func IsValidID(s string) bool {
	if len(s) == 0 || len(s) > maxIDLength {
		return false
	}
	for _, r := range s {
		if !isIDRune(r) {
			return false
		}
	}
	return true
}

// IsValidChannel reports whether s is acceptable as a channel id.
// Channels share the identifier grammar.
func IsValidChannel(s string) bool {
	return IsValidID(s)
}

// IsValidRole reports whether s names a known participant role.
func IsValidRole(s string) bool {
	return Role(s) == RoleStudent || Role(s) == RoleObserver
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == '.':
		return true
	}
	return false
}
