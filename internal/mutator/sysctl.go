package mutator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// sysctlGroup is one subsystem section of the kernel-parameter block.
// Groups render in a fixed order; keys render sorted within each group,
// so serialization is deterministic.
type sysctlGroup struct {
	name   string
	params map[string]string
}

// sysctlGroups computes the desired kernel parameters from the profile.
func sysctlGroups(prof domain.OptimizationProfile) []sysctlGroup {
	return []sysctlGroup{
		{
			name: "memory",
			params: map[string]string{
				"vm.swappiness":             fmt.Sprintf("%d", prof.Swappiness),
				"vm.vfs_cache_pressure":     fmt.Sprintf("%d", prof.VFSCachePressure),
				"vm.min_free_kbytes":        fmt.Sprintf("%d", prof.MinFreeKB),
				"vm.dirty_ratio":            fmt.Sprintf("%d", prof.DirtyRatio),
				"vm.dirty_background_ratio": fmt.Sprintf("%d", prof.DirtyBackgroundRatio),
			},
		},
		{
			name: "network",
			params: map[string]string{
				"net.core.default_qdisc":          "fq",
				"net.ipv4.tcp_congestion_control": "bbr",
				"net.core.netdev_max_backlog":     "16384",
				"net.ipv4.tcp_fastopen":           "3",
			},
		},
		{
			name: "filesystem",
			params: map[string]string{
				"fs.file-max":                   "2097152",
				"fs.inotify.max_user_watches":   "524288",
				"fs.inotify.max_user_instances": "1024",
			},
		},
		{
			name: "kernel",
			params: map[string]string{
				"kernel.panic": "10",
				"kernel.sysrq": "1",
			},
		},
		{
			name: "security",
			params: map[string]string{
				"kernel.kptr_restrict":        "1",
				"kernel.dmesg_restrict":       "1",
				"net.ipv4.conf.all.rp_filter": "1",
			},
		},
	}
}

// renderSysctlBlock serializes the parameter groups. Same profile in,
// same bytes out.
func renderSysctlBlock(prof domain.OptimizationProfile) string {
	var b strings.Builder
	for i, g := range sysctlGroups(prof) {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("# " + g.name + "\n")

		keys := make([]string, 0, len(g.params))
		for k := range g.params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(k + " = " + g.params[k] + "\n")
		}
	}
	return b.String()
}
