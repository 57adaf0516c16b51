// Package main is the CLI entry point for ubuntu-tools.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Nerds489/ubuntu-tools/internal/config"
	"github.com/Nerds489/ubuntu-tools/internal/defense"
	"github.com/Nerds489/ubuntu-tools/internal/domain"
	"github.com/Nerds489/ubuntu-tools/internal/fingerprint"
	"github.com/Nerds489/ubuntu-tools/internal/infra"
	"github.com/Nerds489/ubuntu-tools/internal/mutator"
	"github.com/Nerds489/ubuntu-tools/internal/profile"
	"github.com/Nerds489/ubuntu-tools/internal/report"
	"github.com/Nerds489/ubuntu-tools/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ubuntu-tools",
	Short: "Adaptive host optimization for Ubuntu systems",
	Long: `ubuntu-tools fingerprints the machine's hardware, derives a tuned
resource profile from its memory size, and applies the profile as a set
of backed-up, reversible configuration changes. A tiered memory-pressure
defense can run in the foreground to keep the host responsive under load.

Every mutated file is backed up first; 'ubuntu-tools restore' rolls the
last run back byte for byte.`,
	Version: Version,
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Fingerprint the host and apply the derived optimization profile",
	Long: `Probes the hardware, derives the memory-band profile, and applies it:
sysctl tuning, swap file, zram, I/O scheduler, CPU governor, network
tuning, and mount table entries. Prompts for confirmation unless --yes.`,
	RunE: runOptimize,
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the probed hardware facts without changing anything",
	RunE:  runFingerprint,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the optimization profile this host would receive",
	RunE:  runProfile,
}

var defendCmd = &cobra.Command{
	Use:   "defend",
	Short: "Run the memory-pressure defense in the foreground",
	Long: `Starts the three defense tiers and blocks until interrupted:
kernel OOM tuning (once), a fast reaper that terminates the largest
preferred victim under combined memory and swap exhaustion, and a
periodic guardian that reclaims caches at the pressure watermarks.`,
	RunE: runDefend,
}

var emergencyCmd = &cobra.Command{
	Use:   "emergency",
	Short: "Run an immediate memory cleanup",
	Long: `Drops caches, compacts memory, and cycles swap. Terminates
applications from the fixed kill list only if usage is still above the
emergency watermark after reclamation.`,
	RunE: runEmergency,
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Roll back the last optimization run from its backups",
	RunE:  runRestore,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the last recorded optimization run",
	RunE:  runReport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	assumeYes   bool
	metricsAddr string
	jsonOutput  bool
)

func init() {
	optimizeCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Apply without confirmation")
	defendCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(defendCmd)
	rootCmd.AddCommand(emergencyCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}

// requireRoot exits with code 2 when the command needs privileges it
// does not have. Mutating commands write under /etc and /proc.
func requireRoot() {
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "this command must run as root (try sudo)")
		os.Exit(2)
	}
}

func runOptimize(cmd *cobra.Command, args []string) error {
	requireRoot()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	var confirm usecase.ConfirmFunc
	if !assumeYes {
		confirm = promptConfirm
	}

	opt, ledger, err := buildOptimizer(cfg, logger, confirm)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer func() { _ = ledger.Close() }()
	}

	ctx, cancel := signalContext()
	defer cancel()

	out, err := opt.Run(ctx)
	if err == usecase.ErrDeclined {
		fmt.Println("Aborted. Nothing was changed.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Print(report.Run(out.Fingerprint, out.Profile, out.Report, out.Warnings))
	return nil
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()

	fp, err := fingerprint.NewProber(logger).Fingerprint()
	if err != nil {
		return err
	}

	fmt.Print(report.Fingerprint(fp))
	return nil
}

func runProfile(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()

	fp, err := fingerprint.NewProber(logger).Fingerprint()
	if err != nil {
		return err
	}

	fmt.Print(report.Profile(fp, profile.Derive(fp)))
	return nil
}

func runDefend(cmd *cobra.Command, args []string) error {
	requireRoot()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	fp, err := fingerprint.NewProber(logger).Fingerprint()
	if err != nil {
		return err
	}
	policy := profile.ThresholdPolicyFor(fp, cfg)

	files := infra.NewFileStore()
	mem := infra.NewMemoryReader()
	procs := infra.NewProcessManager()

	addr := metricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	var metrics *defense.Metrics
	if addr != "" {
		metrics = defense.NewMetrics()
	}

	aggressive := fp.TotalMemoryMB <= cfg.LowMemoryCutoffMB
	sup := defense.NewSupervisor(
		defense.NewOOMTuner(files, aggressive, logger),
		defense.NewReaper(mem, procs, policy, metrics, logger),
		defense.NewGuardian(mem, files, policy, metrics, logger),
		metrics, addr, logger)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println("Memory defense running. Ctrl-C to stop.")
	if err := sup.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runEmergency(cmd *cobra.Command, args []string) error {
	requireRoot()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	fp, err := fingerprint.NewProber(logger).Fingerprint()
	if err != nil {
		return err
	}
	policy := profile.ThresholdPolicyFor(fp, cfg)

	cleaner := defense.NewEmergencyCleaner(
		infra.NewMemoryReader(),
		infra.NewFileStore(),
		infra.NewSystemdController(logger),
		infra.NewProcessManager(),
		policy, nil, logger)

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := cleaner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(report.Emergency(rep))
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	requireRoot()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	opt, ledger, err := buildOptimizer(cfg, logger, nil)
	if err != nil {
		return err
	}
	if ledger != nil {
		defer func() { _ = ledger.Close() }()
	}

	ctx, cancel := signalContext()
	defer cancel()

	rep, err := opt.RestoreLast(ctx)
	if err != nil {
		return err
	}

	fmt.Print(report.Restore(rep))
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ledger, err := infra.NewRunLedger(cfg.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	last, err := ledger.LastRun()
	if err != nil {
		return err
	}
	if last == nil {
		fmt.Println("No optimization run recorded yet.")
		return nil
	}

	fmt.Print(report.LastRun(*last))
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("ubuntu-tools %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// buildOptimizer wires the full optimize/restore stack. The ledger is
// optional: a failure to open it degrades to an unrecorded run.
func buildOptimizer(cfg config.Config, logger *zap.Logger, confirm usecase.ConfirmFunc) (*usecase.Optimizer, domain.RunLedger, error) {
	files := infra.NewFileStore()
	backups := infra.NewBackupStore(cfg.BackupRoot)
	services := infra.NewSystemdController(logger)
	mut := mutator.New(files, backups, services, logger)
	installers := infra.NewInstallerManager(logger)
	prober := fingerprint.NewProber(logger)

	var ledger domain.RunLedger
	sqlLedger, err := infra.NewRunLedger(cfg.DataDir)
	if err != nil {
		logger.Warn("run ledger unavailable, runs will not be recorded", zap.Error(err))
	} else {
		ledger = sqlLedger
	}

	return usecase.NewOptimizer(prober, mut, installers, ledger, confirm, logger), ledger, nil
}

// promptConfirm shows the derived profile and asks before mutating.
func promptConfirm(fp domain.HostFingerprint, prof domain.OptimizationProfile) bool {
	fmt.Print(report.Fingerprint(fp))
	fmt.Println()
	fmt.Print(report.Profile(fp, prof))
	fmt.Print("\nApply this profile? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func createLogger(cfg config.Config) *zap.Logger {
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{cfg.LogPath}
	zcfg.ErrorOutputPaths = []string{cfg.LogPath}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}
