package mutator

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
	"github.com/Nerds489/ubuntu-tools/internal/profile"
)

// Generated units are self-contained: no external template files, and
// each declares its own activation dependency on multi-user.target.

const zramUnitTemplate = `[Unit]
Description=Compressed swap (zram) sized by ubuntu-tools
After=multi-user.target

[Service]
Type=oneshot
RemainAfterExit=yes
ExecStart=/sbin/modprobe zram
ExecStart=/bin/sh -c 'echo zstd > /sys/block/zram0/comp_algorithm || true'
ExecStart=/bin/sh -c 'echo {{.SizeMB}}M > /sys/block/zram0/disksize'
ExecStart=/sbin/mkswap /dev/zram0
ExecStart=/sbin/swapon --priority {{.Priority}} /dev/zram0
ExecStop=/sbin/swapoff /dev/zram0

[Install]
WantedBy=multi-user.target
`

const governorUnitTemplate = `[Unit]
Description=CPU frequency governor set by ubuntu-tools
After=multi-user.target

[Service]
Type=oneshot
RemainAfterExit=yes
ExecStart=/bin/sh -c 'for g in /sys/devices/system/cpu/cpu*/cpufreq/scaling_governor; do echo {{.Governor}} > "$g" || true; done'

[Install]
WantedBy=multi-user.target
`

const networkUnitTemplate = `[Unit]
Description=Network interface tuning by ubuntu-tools
After=multi-user.target

[Service]
Type=oneshot
RemainAfterExit=yes
ExecStart=/sbin/ip link set dev {{.Interface}} txqueuelen 10000

[Install]
WantedBy=multi-user.target
`

var (
	zramTmpl     = template.Must(template.New("zram").Parse(zramUnitTemplate))
	governorTmpl = template.Must(template.New("governor").Parse(governorUnitTemplate))
	networkTmpl  = template.Must(template.New("network").Parse(networkUnitTemplate))
)

func renderZramUnit(sizeMB uint64) (string, error) {
	var buf bytes.Buffer
	err := zramTmpl.Execute(&buf, struct {
		SizeMB   uint64
		Priority int
	}{sizeMB, zramSwapPriority})
	return buf.String(), err
}

func renderGovernorUnit(isLaptop bool) (string, error) {
	var buf bytes.Buffer
	err := governorTmpl.Execute(&buf, struct{ Governor string }{profile.GovernorFor(isLaptop)})
	return buf.String(), err
}

func renderNetworkUnit(iface string) (string, error) {
	var buf bytes.Buffer
	err := networkTmpl.Execute(&buf, struct{ Interface string }{iface})
	return buf.String(), err
}

// renderSchedulerRules builds the udev rule that pins the I/O scheduler
// for the probed storage class. NVMe always gets none regardless of the
// class of the primary device.
func renderSchedulerRules(class domain.StorageClass) string {
	sched := profile.SchedulerFor(class)
	return fmt.Sprintf(
		"# I/O scheduler selected from storage class %s\n"+
			`ACTION=="add|change", KERNEL=="nvme[0-9]*n[0-9]*", ATTR{queue/scheduler}="none"`+"\n"+
			`ACTION=="add|change", KERNEL=="sd[a-z]|vd[a-z]|mmcblk[0-9]*", ATTR{queue/scheduler}="%s"`+"\n",
		class, sched)
}
