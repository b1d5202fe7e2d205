package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// GenerateInviteToken generates a random invitation token
func GenerateInviteToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateAccessCode generates a short organization access code
// in the format XXXX-XXXX used for employee self-registration links
func GenerateAccessCode() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	hexStr := strings.ToUpper(hex.EncodeToString(bytes))
	return fmt.Sprintf("%s-%s", hexStr[0:4], hexStr[4:8]), nil
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts an organization name into a URL-friendly slug.
// Non-latin names collapse to a random suffix only.
func Slugify(name string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 40 {
		slug = slug[:40]
	}

	bytes := make([]byte, 3)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	suffix := hex.EncodeToString(bytes)

	if slug == "" {
		return "org-" + suffix, nil
	}
	return slug + "-" + suffix, nil
}
