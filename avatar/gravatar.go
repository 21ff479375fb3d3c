package avatar

import (
	"crypto/md5"
	"fmt"
	"strings"
)

// GravatarURL derives the default avatar reference for an email. The
// gravatar protocol hashes the trimmed, lowercased address with md5.
func GravatarURL(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x", md5.Sum([]byte(normalized)))
}
