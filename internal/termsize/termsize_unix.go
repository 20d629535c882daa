//go:build unix

package termsize

import (
	"os"

	"golang.org/x/sys/unix"
)

func columns(f *os.File) (int, error) {
	ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, err
	}
	return int(ws.Col), nil
}
