package infra

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
)

// CommandRunner executes an external command and returns its combined
// output. Split out so service operations can be stubbed in tests.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with a hard timeout so a wedged systemctl
// cannot stall the sequential mutation pipeline.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner with the default timeout.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Timeout: 30 * time.Second}
}

func (r *ExecRunner) Run(name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return out, fmt.Errorf("%s timed out after %s", name, r.Timeout)
	}
	if err != nil {
		return out, fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return out, nil
}

// SystemdController implements domain.ServiceController through
// systemctl, sysctl, udevadm and the swap utilities.
type SystemdController struct {
	runner CommandRunner
	logger *zap.Logger
}

// NewSystemdController creates a controller using the real exec runner.
func NewSystemdController(logger *zap.Logger) *SystemdController {
	return NewSystemdControllerWithRunner(NewExecRunner(), logger)
}

// NewSystemdControllerWithRunner creates a controller with a custom runner (for testing).
func NewSystemdControllerWithRunner(runner CommandRunner, logger *zap.Logger) *SystemdController {
	return &SystemdController{runner: runner, logger: logger}
}

func (c *SystemdController) RestartService(name string) error {
	_, err := c.runner.Run("systemctl", "restart", name)
	return err
}

func (c *SystemdController) EnableService(name string) error {
	_, err := c.runner.Run("systemctl", "enable", "--now", name)
	return err
}

func (c *SystemdController) DaemonReload() error {
	_, err := c.runner.Run("systemctl", "daemon-reload")
	return err
}

// ReloadSysctl re-applies every parameter table from disk.
func (c *SystemdController) ReloadSysctl() error {
	_, err := c.runner.Run("sysctl", "--system")
	return err
}

func (c *SystemdController) ReloadUdev() error {
	if _, err := c.runner.Run("udevadm", "control", "--reload-rules"); err != nil {
		return err
	}
	_, err := c.runner.Run("udevadm", "trigger", "--subsystem-match=block")
	return err
}

func (c *SystemdController) MakeSwap(path string) error {
	_, err := c.runner.Run("mkswap", path)
	return err
}

func (c *SystemdController) SwapOn(path string, priority int) error {
	_, err := c.runner.Run("swapon", "--priority", strconv.Itoa(priority), path)
	return err
}

func (c *SystemdController) SwapOff(path string) error {
	_, err := c.runner.Run("swapoff", path)
	return err
}

func (c *SystemdController) SwapOffAll() error {
	_, err := c.runner.Run("swapoff", "-a")
	return err
}

func (c *SystemdController) SwapOnAll() error {
	_, err := c.runner.Run("swapon", "-a")
	return err
}

// Ensure SystemdController implements domain.ServiceController.
var _ domain.ServiceController = (*SystemdController)(nil)
