//go:build integration

package integration

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/Nerds489/ubuntu-tools/internal/domain"
	"github.com/Nerds489/ubuntu-tools/internal/infra"
	"github.com/Nerds489/ubuntu-tools/internal/mutator"
	"github.com/Nerds489/ubuntu-tools/internal/profile"
)

// nullController satisfies domain.ServiceController without touching
// the host. Everything file-side still runs for real against the
// re-rooted store.
type nullController struct{}

func (nullController) RestartService(string) error { return nil }
func (nullController) EnableService(string) error  { return nil }
func (nullController) DaemonReload() error         { return nil }
func (nullController) ReloadSysctl() error         { return nil }
func (nullController) ReloadUdev() error           { return nil }
func (nullController) MakeSwap(string) error       { return nil }
func (nullController) SwapOn(string, int) error    { return nil }
func (nullController) SwapOff(string) error        { return nil }
func (nullController) SwapOffAll() error           { return nil }
func (nullController) SwapOnAll() error            { return nil }

var _ = Describe("Optimization round trip", func() {
	var (
		rootDir   string
		backupDir string
		ledgerDir string
		files     *infra.RootFileStore
		backups   *infra.TimestampBackupStore
		mut       *mutator.Mutator
		fp        domain.HostFingerprint
	)

	BeforeEach(func() {
		var err error
		rootDir, err = os.MkdirTemp("", "ubuntu-tools-root-*")
		Expect(err).NotTo(HaveOccurred())
		backupDir, err = os.MkdirTemp("", "ubuntu-tools-backups-*")
		Expect(err).NotTo(HaveOccurred())
		ledgerDir, err = os.MkdirTemp("", "ubuntu-tools-ledger-*")
		Expect(err).NotTo(HaveOccurred())

		files = infra.NewFileStoreWithRoot(rootDir)
		backups = infra.NewBackupStore(backupDir)
		mut = mutator.New(files, backups, nullController{}, zap.NewNop())

		fp = domain.HostFingerprint{
			TotalMemoryMB:    7842,
			StorageClass:     domain.StorageSSD,
			IsLaptop:         true,
			NetworkInterface: "wlp2s0",
		}

		Expect(files.WriteFile("/etc/sysctl.conf", []byte("# shipped defaults\n"), 0644)).To(Succeed())
		Expect(files.WriteFile("/etc/fstab", []byte("UUID=root / ext4 defaults 0 1\n"), 0644)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(rootDir)
		os.RemoveAll(backupDir)
		os.RemoveAll(ledgerDir)
	})

	// smallSwap shrinks the swap file so the suite does not allocate
	// gigabytes; everything else about the profile stays as derived.
	smallSwap := func(prof domain.OptimizationProfile) domain.OptimizationProfile {
		prof.SwapSizeMB = 4
		return prof
	}

	Describe("Apply followed by Restore", func() {
		It("returns every target to its pre-apply bytes", func() {
			prof := smallSwap(profile.Derive(fp))

			report, err := mut.Apply(context.Background(), prof, fp)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Mutations).NotTo(BeEmpty())

			_, err = mut.Restore(context.Background(), report.Mutations)
			Expect(err).NotTo(HaveOccurred())

			sysctl, err := files.ReadFile("/etc/sysctl.conf")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(sysctl)).To(Equal("# shipped defaults\n"))

			fstab, err := files.ReadFile("/etc/fstab")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(fstab)).To(Equal("UUID=root / ext4 defaults 0 1\n"))

			Expect(files.Exists("/swapfile")).To(BeFalse())
			Expect(files.Exists("/etc/udev/rules.d/60-ubuntu-tools-iosched.rules")).To(BeFalse())
		})
	})

	Describe("Repeated runs", func() {
		It("accumulates backups without growing the managed files", func() {
			prof := smallSwap(profile.Derive(fp))

			var lastSysctl []byte
			for i := 0; i < 3; i++ {
				_, err := mut.Apply(context.Background(), prof, fp)
				Expect(err).NotTo(HaveOccurred())

				current, err := files.ReadFile("/etc/sysctl.conf")
				Expect(err).NotTo(HaveOccurred())
				if lastSysctl != nil {
					Expect(current).To(Equal(lastSysctl))
				}
				lastSysctl = current
			}

			saved, err := backups.List("/etc/sysctl.conf")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(HaveLen(3))
		})
	})

	Describe("Run ledger", func() {
		It("round-trips a full run record", func() {
			ledger, err := infra.NewRunLedger(ledgerDir)
			Expect(err).NotTo(HaveOccurred())
			defer ledger.Close()

			prof := smallSwap(profile.Derive(fp))
			report, err := mut.Apply(context.Background(), prof, fp)
			Expect(err).NotTo(HaveOccurred())

			id, err := ledger.Record(domain.RunRecord{
				StartedAt:   report.Mutations[0].AppliedAt,
				Fingerprint: fp,
				Profile:     prof,
				Mutations:   report.Mutations,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			last, err := ledger.LastRun()
			Expect(err).NotTo(HaveOccurred())
			Expect(last).NotTo(BeNil())
			Expect(last.Profile.Name).To(Equal(prof.Name))
			Expect(last.Mutations).To(HaveLen(len(report.Mutations)))
		})
	})
})
