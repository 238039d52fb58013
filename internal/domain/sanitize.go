package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Every string that reaches the output directory passes through this file:
// remote titles via ArtifactFileName, client-supplied names via
// ValidateArtifactName.

const (
	unsafeTitleChars    = `\/:"*?<>|`
	titlePlaceholder    = '-'
	maxArtifactNameSize = 200
	fallbackTitle       = "untitled"
)

// SanitizeTitle replaces each filesystem-unsafe character with '-'.
// It is idempotent.
func SanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeTitleChars, r) {
			return titlePlaceholder
		}
		return r
	}, title)
}

// ArtifactFileName derives the on-disk name for a video title and format.
// The result is always a valid, non-hidden, single path element.
func ArtifactFileName(title string, f Format) string {
	name := SanitizeTitle(title)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ". ")
	name = strings.TrimRight(name, " ")

	ext := "." + string(f)
	name = truncateUTF8(name, maxArtifactNameSize-len(ext))
	if name == "" {
		name = fallbackTitle
	}
	return name + ext
}

// ValidateArtifactName rejects names that could escape the output directory
// or address files the store does not expose.
func ValidateArtifactName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case filepath.IsAbs(name), filepath.Base(name) != name:
		return fmt.Errorf("%w: %q is not a plain file name", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q is hidden", ErrInvalidName, name)
	}
	return nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.TrimRight(s[:n], " ")
}
