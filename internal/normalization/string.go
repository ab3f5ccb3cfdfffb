package normalization

import (
	"strings"
)

// Label lower-cases and trims a user supplied name so that lookups on
// (user_id, name) are case-insensitive.
func Label(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func LabelPtr(input *string) *string {
	if input == nil {
		return nil
	}
	normalized := Label(*input)
	return &normalized
}
