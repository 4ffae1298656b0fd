package archive

import (
	"errors"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// headSize is enough for filetype to check any known signature.
const headSize = 262

// IsArchive checks if file is a zip archive looking at its signature,
// extension is not trusted.
func IsArchive(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	head := make([]byte, headSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.Is(head[:n], "zip"), nil
}
