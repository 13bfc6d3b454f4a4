// Package idgen generates entry and message ids of the form
// <peer>-<unixMillis>-<random>, with the random part backed by nanoid.
package idgen

import (
	"fmt"
	"strconv"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated.
var Length = 7

// Generate returns a new unique id for peer created at now. Ids are never
// reused: the random suffix separates ids minted in the same millisecond.
func Generate(peer string, now time.Time) (string, error) {
	return GenerateWithPrefix(peer + "-" + strconv.FormatInt(now.UnixMilli(), 10) + "-")
}

// GenerateWithPrefix returns prefix followed by a random suffix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
