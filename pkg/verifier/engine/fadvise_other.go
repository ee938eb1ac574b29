//go:build !linux

package engine

import "os"

func adviseSequential(*os.File) {}
