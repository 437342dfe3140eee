//go:build !linux

package update

import (
	"os"
	"syscall"
	"time"
)

func statATime(st *syscall.Stat_t) time.Time { return time.Time{} }

func statCTime(st *syscall.Stat_t) time.Time { return time.Time{} }

func rdevMajorMinor(info os.FileInfo) (uint32, uint32) { return 0, 0 }
