package engine

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ensureFreeSpace refuses staging when the filesystem holding dir cannot fit
// the inputs plus a small safety margin.
func ensureFreeSpace(dir string, needed int64) error {
	const margin = 64 << 20 // 64 MiB

	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", dir, err)
	}
	available := int64(stat.Bavail) * int64(stat.Bsize)
	if available < needed+margin {
		return fmt.Errorf("not enough free space in %s: need %d bytes, have %d", dir, needed+margin, available)
	}
	return nil
}
