//go:build unix

package ffmpeg

import (
	"golang.org/x/sys/unix"
)

func checkReadable(path string) error {
	return unix.Access(path, unix.R_OK)
}
