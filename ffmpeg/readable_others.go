//go:build !unix

package ffmpeg

import (
	"os"
)

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
