package attribute

import "regexp"

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]+([.-][a-z][a-z0-9]+)*$`)

// ValidName reports whether name satisfies the attribute grammar.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}
