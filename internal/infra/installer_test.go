package infra

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// fakeInstaller implements domain.PackageInstaller for testing.
type fakeInstaller struct {
	name       string
	available  bool
	installed  map[string]bool
	installErr error
	installs   []string
}

func (f *fakeInstaller) Name() string      { return f.name }
func (f *fakeInstaller) IsAvailable() bool { return f.available }

func (f *fakeInstaller) IsInstalled(pkg string) bool {
	return f.installed[pkg]
}

func (f *fakeInstaller) Install(pkg string) error {
	if f.installErr != nil {
		return f.installErr
	}
	f.installs = append(f.installs, pkg)
	return nil
}

func TestInstallerManagerProbeKeepsOnlyAvailable(t *testing.T) {
	apt := &fakeInstaller{name: "apt", available: false}
	dnf := &fakeInstaller{name: "dnf", available: true}

	m := NewInstallerManagerWith(zap.NewNop(), apt, dnf)

	require.Len(t, m.Managers(), 1)
	assert.Equal(t, "dnf", m.Managers()[0].Name())
}

func TestEnsureInstalledUsesFirstProbedManager(t *testing.T) {
	first := &fakeInstaller{name: "apt", available: true, installed: map[string]bool{}}
	second := &fakeInstaller{name: "dnf", available: true, installed: map[string]bool{}}

	m := NewInstallerManagerWith(zap.NewNop(), first, second)

	name, err := m.EnsureInstalled("zram-tools")
	require.NoError(t, err)
	assert.Equal(t, "apt", name)
	assert.Equal(t, []string{"zram-tools"}, first.installs)
	assert.Empty(t, second.installs)
}

func TestEnsureInstalledSkipsAlreadyPresent(t *testing.T) {
	apt := &fakeInstaller{
		name:      "apt",
		available: true,
		installed: map[string]bool{"util-linux": true},
	}

	m := NewInstallerManagerWith(zap.NewNop(), apt)

	name, err := m.EnsureInstalled("util-linux")
	require.NoError(t, err)
	assert.Equal(t, "apt", name)
	assert.Empty(t, apt.installs, "already-installed package must not be reinstalled")
}

func TestEnsureInstalledNoManagers(t *testing.T) {
	m := NewInstallerManagerWith(zap.NewNop())

	_, err := m.EnsureInstalled("earlyoom")
	var unavail *domain.PackageUnavailable
	require.ErrorAs(t, err, &unavail)
	assert.Equal(t, "earlyoom", unavail.Package)
}

func TestEnsureInstalledFailureIsPackageUnavailable(t *testing.T) {
	apt := &fakeInstaller{
		name:       "apt",
		available:  true,
		installed:  map[string]bool{},
		installErr: &domain.PackageUnavailable{Package: "zram-tools", Err: errors.New("mirror down")},
	}

	m := NewInstallerManagerWith(zap.NewNop(), apt)

	_, err := m.EnsureInstalled("zram-tools")
	var unavail *domain.PackageUnavailable
	assert.ErrorAs(t, err, &unavail)
}
