package mutator

import (
	"fmt"
	"strings"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// Swap backends rank deterministically by priority: compressed swap above
// disk swap, so the kernel fills zram first.
const (
	zramSwapPriority = 100
	fileSwapPriority = 50
)

// renderFstabBlock builds the mount-table entries in the recognized
// `path type options dump fsck` line format. The swap file line is only
// emitted when the file was actually created this run.
func renderFstabBlock(prof domain.OptimizationProfile, swapFileReady bool) string {
	var lines []string

	if swapFileReady {
		lines = append(lines, fmt.Sprintf("%s none swap sw,pri=%d 0 0", swapFilePath, fileSwapPriority))
	}
	if prof.ZRAMEnabled {
		lines = append(lines, fmt.Sprintf("/dev/zram0 none swap sw,pri=%d,nofail 0 0", zramSwapPriority))
	}
	lines = append(lines, fmt.Sprintf("tmpfs /tmp tmpfs defaults,noatime,size=%dM 0 0", prof.TmpfsSizeMB))

	return strings.Join(lines, "\n") + "\n"
}
