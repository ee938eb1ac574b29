//go:build linux

package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
