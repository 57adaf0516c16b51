// Package fingerprint collects hardware and software facts about the host.
// All probes are read-only. Only the memory probe is fatal; every other
// fact degrades to a defined unknown sentinel so a partially observable
// host still produces a usable fingerprint.
package fingerprint

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// Prober reads system state from sysfs, procfs and gopsutil.
type Prober struct {
	sysRoot  string
	procRoot string
	logger   *zap.Logger

	// Seams for tests; default to gopsutil and the process environment.
	vmStat   func() (*mem.VirtualMemoryStat, error)
	cpuCount func(logical bool) (int, error)
	hostInfo func() (*host.InfoStat, error)
	getenv   func(key string) string
}

// NewProber creates a prober against the live system.
func NewProber(logger *zap.Logger) *Prober {
	return NewProberWithRoots("/sys", "/proc", logger)
}

// NewProberWithRoots creates a prober with custom sysfs/procfs roots (for testing).
func NewProberWithRoots(sysRoot, procRoot string, logger *zap.Logger) *Prober {
	return &Prober{
		sysRoot:  sysRoot,
		procRoot: procRoot,
		logger:   logger,
		vmStat:   mem.VirtualMemory,
		cpuCount: cpu.Counts,
		hostInfo: host.Info,
		getenv:   os.Getenv,
	}
}

// Fingerprint collects all facts. Fails only when no memory-accounting
// source is readable; everything else is best effort.
func (p *Prober) Fingerprint() (domain.HostFingerprint, error) {
	vm, err := p.vmStat()
	if err != nil {
		return domain.HostFingerprint{}, &domain.DetectionError{Source: "memory", Err: err}
	}

	fp := domain.HostFingerprint{
		TotalMemoryMB:     vm.Total / 1024 / 1024,
		AvailableMemoryMB: vm.Available / 1024 / 1024,
		StorageClass:      p.storageClass(),
		CPUCores:          p.cpuCores(),
		GPUVendor:         p.gpuVendor(),
		IsLaptop:          p.isLaptop(),
		IsVirtualMachine:  p.isVirtualMachine(),
		DesktopEnv:        p.desktopEnv(),
		NetworkInterface:  p.defaultInterface(),
		KernelVersion:     p.kernelVersion(),
	}

	p.logger.Info("host fingerprinted",
		zap.Uint64("total_memory_mb", fp.TotalMemoryMB),
		zap.String("storage_class", string(fp.StorageClass)),
		zap.Uint("cpu_cores", fp.CPUCores),
		zap.Bool("laptop", fp.IsLaptop),
		zap.Bool("vm", fp.IsVirtualMachine))

	return fp, nil
}

// storageClass classifies the primary block device. NVMe wins outright;
// otherwise the rotational flag decides: 0 means SSD, anything else HDD.
func (p *Prober) storageClass() domain.StorageClass {
	entries, err := os.ReadDir(filepath.Join(p.sysRoot, "block"))
	if err != nil {
		return domain.StorageUnknown
	}

	var primary string
	for _, e := range entries {
		name := e.Name()
		if isVirtualDevice(name) {
			continue
		}
		if strings.HasPrefix(name, "nvme") {
			return domain.StorageNVMe
		}
		if primary == "" {
			primary = name
		}
	}
	if primary == "" {
		return domain.StorageUnknown
	}

	rot, err := os.ReadFile(filepath.Join(p.sysRoot, "block", primary, "queue", "rotational"))
	if err != nil {
		return domain.StorageUnknown
	}
	if strings.TrimSpace(string(rot)) == "0" {
		return domain.StorageSSD
	}
	return domain.StorageHDD
}

func isVirtualDevice(name string) bool {
	for _, prefix := range []string{"loop", "ram", "zram", "sr", "dm-", "md"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (p *Prober) cpuCores() uint {
	n, err := p.cpuCount(true)
	if err != nil || n <= 0 {
		return uint(runtime.NumCPU())
	}
	return uint(n)
}

// PCI vendor IDs of display controllers.
const (
	vendorNvidia = "0x10de"
	vendorAMD    = "0x1002"
	vendorIntel  = "0x8086"
)

func (p *Prober) gpuVendor() domain.GPUVendor {
	devices, err := filepath.Glob(filepath.Join(p.sysRoot, "bus", "pci", "devices", "*"))
	if err != nil {
		return domain.GPUUnknown
	}

	for _, dev := range devices {
		class, err := os.ReadFile(filepath.Join(dev, "class"))
		if err != nil {
			continue
		}
		// Display controllers have PCI class 0x03xxxx.
		if !strings.HasPrefix(strings.TrimSpace(string(class)), "0x03") {
			continue
		}
		vendor, err := os.ReadFile(filepath.Join(dev, "vendor"))
		if err != nil {
			continue
		}
		switch strings.TrimSpace(string(vendor)) {
		case vendorNvidia:
			return domain.GPUNvidia
		case vendorAMD:
			return domain.GPUAMD
		case vendorIntel:
			return domain.GPUIntel
		}
	}
	return domain.GPUUnknown
}

// isLaptop checks for any battery power-supply node.
func (p *Prober) isLaptop() bool {
	matches, err := filepath.Glob(filepath.Join(p.sysRoot, "class", "power_supply", "BAT*"))
	return err == nil && len(matches) > 0
}

func (p *Prober) isVirtualMachine() bool {
	if info, err := p.hostInfo(); err == nil && info.VirtualizationRole == "guest" {
		return true
	}

	product, err := os.ReadFile(filepath.Join(p.sysRoot, "class", "dmi", "id", "product_name"))
	if err != nil {
		return false
	}
	name := strings.ToLower(strings.TrimSpace(string(product)))
	for _, hint := range []string{"kvm", "vmware", "virtualbox", "qemu", "hyper-v", "bochs"} {
		if strings.Contains(name, hint) {
			return true
		}
	}
	return false
}

func (p *Prober) desktopEnv() domain.DesktopEnv {
	current := strings.ToLower(p.getenv("XDG_CURRENT_DESKTOP"))
	switch {
	case strings.Contains(current, "gnome"):
		return domain.DesktopGNOME
	case strings.Contains(current, "kde"):
		return domain.DesktopKDE
	case strings.Contains(current, "xfce"):
		return domain.DesktopXFCE
	case strings.Contains(current, "cinnamon"):
		return domain.DesktopCinnamon
	case strings.Contains(current, "mate"):
		return domain.DesktopMATE
	default:
		return domain.DesktopUnknown
	}
}

// defaultInterface returns the interface carrying the default route.
func (p *Prober) defaultInterface() string {
	f, err := os.Open(filepath.Join(p.procRoot, "net", "route"))
	if err != nil {
		return ""
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		// Iface Destination Gateway ... - default route has destination 00000000.
		if len(fields) >= 2 && fields[1] == "00000000" {
			return fields[0]
		}
	}
	return ""
}

func (p *Prober) kernelVersion() string {
	if info, err := p.hostInfo(); err == nil && info.KernelVersion != "" {
		return info.KernelVersion
	}
	release, err := os.ReadFile(filepath.Join(p.procRoot, "sys", "kernel", "osrelease"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(release))
}
