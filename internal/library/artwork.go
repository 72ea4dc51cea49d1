package library

import (
	"crypto/md5"
	"encoding/hex"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Role is one of the fixed artwork purposes.
type Role string

const (
	RoleIcon Role = "icon"
	RoleGrid Role = "grid"
	RoleHero Role = "hero"
	RoleLogo Role = "logo"
)

// Roles lists every artwork role in the stable order used for identity keys.
var Roles = []Role{RoleIcon, RoleGrid, RoleHero, RoleLogo}

var artworkFiles = map[Role]string{
	RoleIcon: ".gameicon.png",
	RoleGrid: ".gamegrid.png",
	RoleHero: ".gamehero.png",
	RoleLogo: ".gamelogo.png",
}

// Filename returns the fixed file name for the role.
func (r Role) Filename() string {
	return artworkFiles[r]
}

// Artwork is one present artwork file and the MD5 of its bytes.
type Artwork struct {
	Role   Role   `json:"role"`
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

const hashChunkSize = 4096

// HashArtwork probes dir for the role's file. A missing file returns
// (nil, nil); the role is simply absent.
func HashArtwork(dir string, role Role) (*Artwork, error) {
	path := filepath.Join(dir, role.Filename())

	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return nil, err
	}

	return &Artwork{
		Role:   role,
		Path:   path,
		Digest: hex.EncodeToString(h.Sum(nil)),
	}, nil
}
