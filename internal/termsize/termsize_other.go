//go:build !unix

package termsize

import (
	"errors"
	"os"
)

func columns(*os.File) (int, error) {
	return 0, errors.New("terminal size is not available on this platform")
}
