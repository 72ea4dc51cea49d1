package library

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Key derives the identity key of g: SHA-256 over the descriptor path, the
// descriptor fields and the digest of each present artwork role, taken in
// Roles order. Each element is written as "<len>:<value>" so no choice of
// field contents can make two different element lists encode the same way.
// Artwork paths are not part of the key, only their content.
func Key(g *Game) string {
	var b strings.Builder
	put := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}

	put(g.Path)
	put(g.Name)
	put(g.Title)
	put(g.Executable)
	put(g.Directory)
	put(g.Options)
	put(g.Compat)
	put(strconv.FormatBool(g.Hidden))
	for _, role := range Roles {
		art, ok := g.Artwork[role]
		if !ok || art == nil {
			continue
		}
		put(string(role) + "=" + art.Digest)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
