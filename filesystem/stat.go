package filesystem

import (
	"os"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
)

type Stat struct {
	os.FileInfo
	Mimetype string
}

func (s *Stat) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name     string `json:"name"`
		Modified string `json:"modified"`
		Mode     string `json:"mode"`
		ModeBits string `json:"mode_bits"`
		Size     int64  `json:"size"`
		Mime     string `json:"mime"`
	}{
		Name:     s.Name(),
		Modified: s.ModTime().Format(time.RFC3339),
		Mode:     s.Mode().String(),
		// Using `&os.ModePerm` on the file's mode will cause the mode to only have the permission values, and nothing else.
		ModeBits: strconv.FormatUint(uint64(s.Mode()&os.ModePerm), 8),
		Size:     s.Size(),
		Mime:     s.Mimetype,
	})
}

// Stat stats a file within the root and returns the base stat object from go
// along with the detected MIME type of the contents.
func (fs *Filesystem) Stat(p string) (*Stat, error) {
	cleaned, err := fs.SafePath(p)
	if err != nil {
		return nil, err
	}
	return fs.unsafeStat(cleaned)
}

func (fs *Filesystem) unsafeStat(p string) (*Stat, error) {
	s, err := os.Stat(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	st := &Stat{FileInfo: s, Mimetype: "inode/directory"}
	if !s.IsDir() {
		m, err := mimetype.DetectFile(p)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		st.Mimetype = m.String()
	}
	return st, nil
}
