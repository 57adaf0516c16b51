package infra

import (
	"os/exec"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// managerSpec describes one package manager's probe binary and its
// query/install invocations.
type managerSpec struct {
	name        string
	binary      string
	queryArgs   func(pkg string) []string
	installArgs func(pkg string) []string
	env         []string
}

var managerSpecs = []managerSpec{
	{
		name:   "apt",
		binary: "apt-get",
		queryArgs: func(pkg string) []string {
			return []string{"dpkg", "-s", pkg}
		},
		installArgs: func(pkg string) []string {
			return []string{"apt-get", "install", "-y", "--no-install-recommends", pkg}
		},
		env: []string{"DEBIAN_FRONTEND=noninteractive"},
	},
	{
		name:   "dnf",
		binary: "dnf",
		queryArgs: func(pkg string) []string {
			return []string{"rpm", "-q", pkg}
		},
		installArgs: func(pkg string) []string {
			return []string{"dnf", "install", "-y", pkg}
		},
	},
	{
		name:   "pacman",
		binary: "pacman",
		queryArgs: func(pkg string) []string {
			return []string{"pacman", "-Qi", pkg}
		},
		installArgs: func(pkg string) []string {
			return []string{"pacman", "-S", "--noconfirm", pkg}
		},
	},
	{
		name:   "zypper",
		binary: "zypper",
		queryArgs: func(pkg string) []string {
			return []string{"rpm", "-q", pkg}
		},
		installArgs: func(pkg string) []string {
			return []string{"zypper", "--non-interactive", "install", pkg}
		},
	},
}

// CLIInstaller implements domain.PackageInstaller for one manager spec.
type CLIInstaller struct {
	spec   managerSpec
	runner CommandRunner
	path   string
}

// NewCLIInstaller probes one spec. path is empty when the manager binary
// is absent.
func NewCLIInstaller(spec managerSpec, runner CommandRunner) *CLIInstaller {
	path, _ := exec.LookPath(spec.binary)
	return &CLIInstaller{spec: spec, runner: runner, path: path}
}

func (i *CLIInstaller) Name() string { return i.spec.name }

func (i *CLIInstaller) IsAvailable() bool { return i.path != "" }

func (i *CLIInstaller) IsInstalled(pkg string) bool {
	if !i.IsAvailable() {
		return false
	}
	args := i.spec.queryArgs(pkg)
	_, err := i.runner.Run(args[0], args[1:]...)
	return err == nil
}

func (i *CLIInstaller) Install(pkg string) error {
	if !i.IsAvailable() {
		return &domain.PackageUnavailable{Package: pkg, Err: exec.ErrNotFound}
	}
	args := i.spec.installArgs(pkg)
	if len(i.spec.env) > 0 {
		// Prepend env(1) so the runner needs no environment plumbing.
		args = append(append([]string{"env"}, i.spec.env...), args...)
	}
	if _, err := i.runner.Run(args[0], args[1:]...); err != nil {
		return &domain.PackageUnavailable{Package: pkg, Err: err}
	}
	return nil
}

// ProbedInstallerManager implements domain.InstallerManager. The probe
// runs once at construction; the chosen manager is not re-detected on
// every call.
type ProbedInstallerManager struct {
	managers []domain.PackageInstaller
	logger   *zap.Logger
}

// NewInstallerManager probes the known package managers once and keeps
// the available ones, probe order preserved.
func NewInstallerManager(logger *zap.Logger) *ProbedInstallerManager {
	runner := NewExecRunner()
	m := &ProbedInstallerManager{logger: logger}
	for _, spec := range managerSpecs {
		inst := NewCLIInstaller(spec, runner)
		if inst.IsAvailable() {
			m.managers = append(m.managers, inst)
		}
	}
	return m
}

// NewInstallerManagerWith wires pre-built installers (for testing).
func NewInstallerManagerWith(logger *zap.Logger, installers ...domain.PackageInstaller) *ProbedInstallerManager {
	m := &ProbedInstallerManager{logger: logger}
	for _, inst := range installers {
		if inst.IsAvailable() {
			m.managers = append(m.managers, inst)
		}
	}
	return m
}

// Managers returns the probed package managers.
func (m *ProbedInstallerManager) Managers() []domain.PackageInstaller {
	return m.managers
}

// EnsureInstalled installs pkg through the first probed manager if it is
// not already present.
func (m *ProbedInstallerManager) EnsureInstalled(pkg string) (string, error) {
	if len(m.managers) == 0 {
		return "", &domain.PackageUnavailable{Package: pkg, Err: exec.ErrNotFound}
	}

	mgr := m.managers[0]
	if mgr.IsInstalled(pkg) {
		return mgr.Name(), nil
	}

	m.logger.Info("installing package",
		zap.String("package", pkg),
		zap.String("manager", mgr.Name()))

	if err := mgr.Install(pkg); err != nil {
		return "", err
	}
	return mgr.Name(), nil
}

// Ensure implementations satisfy interfaces.
var _ domain.PackageInstaller = (*CLIInstaller)(nil)
var _ domain.InstallerManager = (*ProbedInstallerManager)(nil)
