//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/locked/internal/daemon"
	"github.com/eliteGoblin/locked/internal/domain"
	"github.com/eliteGoblin/locked/internal/infra"
	"github.com/eliteGoblin/locked/internal/prefs"
	"github.com/eliteGoblin/locked/internal/testutil"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// 2024-01-03 is a Wednesday.
var wednesday10 = time.Date(2024, time.January, 3, 10, 0, 0, 0, time.Local)

// world is a main process and an extension over real stores in a temp dir.
type world struct {
	paths   infra.Paths
	clock   *testutil.FakeClock
	private *infra.BadgerStore
	shared  *infra.EncryptedStore
	shield  *infra.StoreShield
	main    *daemon.Components
	ext     *daemon.Extension
	extDB   *infra.EncryptedStore
}

func newWorld(maxSnoozes int) *world {
	logger := zap.NewNop()
	w := &world{
		paths: *infra.PathsUnder(infra.ExecModeUser, GinkgoT().TempDir()),
		clock: testutil.NewFakeClock(wednesday10),
	}

	var err error
	w.private, err = infra.NewBadgerStore(infra.DefaultBadgerConfig(w.paths.DataDir))
	Expect(err).NotTo(HaveOccurred())
	w.shared, err = infra.OpenSharedStore(w.paths.SharedDir)
	Expect(err).NotTo(HaveOccurred())
	broadcaster, err := infra.NewFileBroadcaster(w.paths.SignalDir, logger)
	Expect(err).NotTo(HaveOccurred())

	center := infra.NewFileAuthorizationCenter(w.paths.DataDir)
	Expect(center.Approve()).To(Succeed())

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(w.paths.SharedDir, pm, time.Minute)
	w.shield = infra.NewStoreShield(w.shared, w.clock, logger)
	w.main = daemon.Assemble(daemon.Host{
		Private:     w.private,
		Shared:      w.shared,
		Shield:      w.shield,
		Center:      center,
		Notifier:    &testutil.RecordingNotifier{},
		TagReader:   infra.NewFileTagReader(w.paths.TagFile),
		Broadcaster: broadcaster,
		Registry:    registry,
		Processes:   pm,
		Clock:       w.clock,
	}, daemon.Settings{
		MaxSnoozesPerDay: maxSnoozes,
		SnoozeDuration:   5 * time.Minute,
		RequestFreshness: 10 * time.Second,
		TagPhrase:        usecase.DefaultTagPhrase,
	}, nil, logger)

	// The extension opens its own connection to the shared database.
	w.extDB, err = infra.OpenSharedStore(w.paths.SharedDir)
	Expect(err).NotTo(HaveOccurred())
	extBroadcaster, err := infra.NewFileBroadcaster(w.paths.SignalDir, logger)
	Expect(err).NotTo(HaveOccurred())
	w.ext = daemon.NewExtension(w.extDB, infra.NewStoreShield(w.extDB, w.clock, logger),
		extBroadcaster, registry, w.clock, logger)

	DeferCleanup(func() {
		w.extDB.Close()
		w.shared.Close()
		w.private.Close()
	})
	return w
}

func (w *world) profile(name string, targets ...string) domain.Profile {
	p, err := w.main.Profiles.Add(domain.Profile{Name: name, LockTargets: targets})
	Expect(err).NotTo(HaveOccurred())
	return p
}

func (w *world) rules() domain.ShieldRules {
	rules, err := w.shield.Current()
	Expect(err).NotTo(HaveOccurred())
	return rules
}

var _ = Describe("Lock session", func() {
	var w *world

	BeforeEach(func() {
		w = newWorld(2)
		w.profile("Focus", "X", "Y")
	})

	Describe("manual lock", func() {
		It("blocks exactly the profile's targets and clears them on unlock", func() {
			locked, err := w.main.Lock("")
			Expect(err).NotTo(HaveOccurred())
			Expect(locked).To(BeTrue())

			rules := w.rules()
			Expect(rules.Mode).To(Equal(domain.ShieldBlockList))
			Expect(rules.Apps).To(Equal([]string{"X", "Y"}))

			unlocked, err := w.main.Unlock()
			Expect(err).NotTo(HaveOccurred())
			Expect(unlocked).To(BeTrue())
			Expect(w.rules().Mode).To(Equal(domain.ShieldNone))
			Expect(w.rules().Apps).To(BeEmpty())
		})

		It("survives a restart of the main process", func() {
			_, err := w.main.Lock("")
			Expect(err).NotTo(HaveOccurred())

			reloaded := daemon.Assemble(daemon.Host{
				Private:  w.private,
				Shared:   w.shared,
				Shield:   w.shield,
				Center:   infra.NewFileAuthorizationCenter(w.paths.DataDir),
				Notifier: &testutil.RecordingNotifier{},
				Clock:    w.clock,
			}, daemon.Settings{MaxSnoozesPerDay: 2, SnoozeDuration: 5 * time.Minute}, nil, zap.NewNop())
			reloaded.Resume()

			Expect(reloaded.Status().Session.IsLocking).To(BeTrue())
			Expect(reloaded.Status().Profile).To(Equal("Focus"))
		})
	})

	Describe("schedules", func() {
		It("locks inside the window and unlocks after it", func() {
			p, ok := w.main.Profiles.Current()
			Expect(ok).To(BeTrue())
			s := usecase.NewSchedule(p.ID, domain.TimeOfDay{Hour: 9}, domain.TimeOfDay{Hour: 17})
			s.RepeatDays = domain.Weekdays
			_, err := w.main.Schedules.Add(s)
			Expect(err).NotTo(HaveOccurred())

			w.main.Resume()
			st := w.main.Status()
			Expect(st.Session.IsLocking).To(BeTrue())
			Expect(st.WasLockedBySchedule).To(BeTrue())
			Expect(w.rules().Apps).To(Equal([]string{"X", "Y"}))

			w.clock.Set(time.Date(2024, time.January, 3, 17, 1, 0, 0, time.Local))
			w.main.Resume()
			Expect(w.main.Status().Session.IsLocking).To(BeFalse())
			Expect(w.rules().Mode).To(Equal(domain.ShieldNone))
		})
	})

	Describe("snooze", func() {
		BeforeEach(func() {
			w = newWorld(1)
			w.profile("Focus", "X", "Y")
			_, err := w.main.Lock("")
			Expect(err).NotTo(HaveOccurred())
		})

		It("unlocks temporarily and re-locks when the countdown ends", func() {
			Expect(w.main.StartSnooze(0)).To(Equal(usecase.SnoozeStarted))
			Expect(w.main.Snooze.IsSnoozed()).To(BeTrue())
			Expect(w.main.Status().Session.IsLocking).To(BeFalse())
			Expect(w.rules().Mode).To(Equal(domain.ShieldNone))

			Expect(w.main.StartSnooze(0)).To(Equal(usecase.SnoozeAlreadyActive))

			w.clock.Advance(5 * time.Minute)
			w.main.Snooze.Tick(w.clock.Now())

			Expect(w.main.Snooze.IsSnoozed()).To(BeFalse())
			Expect(w.main.Status().Session.IsLocking).To(BeTrue())
			Expect(w.rules().Apps).To(Equal([]string{"X", "Y"}))
			Expect(w.main.StartSnooze(0)).To(Equal(usecase.SnoozeBudgetExhausted))
		})

		It("re-applies the shield when the extension reports the interval end", func() {
			Expect(w.main.StartSnooze(0)).To(Equal(usecase.SnoozeStarted))

			applied, err := w.ext.Monitor.IntervalDidEnd()
			Expect(err).NotTo(HaveOccurred())
			Expect(applied).To(BeTrue())
			Expect(w.rules().Apps).To(Equal([]string{"X", "Y"}))

			w.main.Resume()
			Expect(w.main.Snooze.IsSnoozed()).To(BeFalse())
			Expect(w.main.Status().Session.IsLocking).To(BeTrue())
		})
	})
})

var _ = Describe("Snooze request relay", func() {
	var (
		w  *world
		t0 time.Time
	)

	BeforeEach(func() {
		w = newWorld(2)
		w.profile("Focus", "X")
		_, err := w.main.Lock("")
		Expect(err).NotTo(HaveOccurred())
		t0 = w.clock.Now()
	})

	requested := func() bool {
		return prefs.New(w.shared).Bool(prefs.KeySnoozeRequested)
	}

	It("honors a fresh request", func() {
		outcome, err := w.ext.ShieldAction.RequestSnooze()
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(usecase.ActionPosted))

		Expect(w.main.Relay.Consume(t0.Add(5 * time.Second))).To(Equal(usecase.RelayHonored))
		Expect(requested()).To(BeFalse())
		Expect(w.main.Snooze.IsSnoozed()).To(BeTrue())
	})

	It("discards a stale request", func() {
		_, err := w.ext.ShieldAction.RequestSnooze()
		Expect(err).NotTo(HaveOccurred())

		Expect(w.main.Relay.Consume(t0.Add(15 * time.Second))).To(Equal(usecase.RelayStale))
		Expect(requested()).To(BeFalse())
		Expect(w.main.Snooze.IsSnoozed()).To(BeFalse())
	})

	It("denies requests once the budget is spent", func() {
		Expect(w.main.Snooze.SetMaxPerDay(1)).To(Succeed())
		Expect(w.main.StartSnooze(0)).To(Equal(usecase.SnoozeStarted))
		Expect(w.main.EndSnooze()).To(BeTrue())

		outcome, err := w.ext.ShieldAction.RequestSnooze()
		Expect(err).NotTo(HaveOccurred())
		Expect(outcome).To(Equal(usecase.ActionDenied))
		Expect(requested()).To(BeFalse())
	})

	It("reaches a running main process through the broadcast", func() {
		cfg := daemon.DefaultAppConfig()
		cfg.RelayPollInterval = time.Hour
		cfg.SchedulePollInterval = time.Hour
		cfg.TickInterval = time.Hour
		cfg.HeartbeatInterval = time.Hour
		app := daemon.NewApp(w.main, cfg)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- app.Run(ctx) }()
		DeferCleanup(func() {
			cancel()
			<-done
		})

		// Do returns once the loop runs, which is after the observers are in place.
		Expect(app.Do(ctx, func() {})).To(Succeed())
		Expect(w.main.Registry.IsMainAlive()).To(BeTrue())

		_, err := w.ext.ShieldAction.RequestSnooze()
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() bool {
			var snoozed bool
			_ = app.Do(ctx, func() { snoozed = w.main.Snooze.IsSnoozed() })
			return snoozed
		}, 5*time.Second, 20*time.Millisecond).Should(BeTrue())
		Expect(requested()).To(BeFalse())
	})
})

var _ = Describe("Paths", func() {
	It("keeps shared state apart from private state", func() {
		p := infra.PathsUnder(infra.ExecModeUser, "/tmp/x")
		Expect(filepath.Dir(p.SignalDir)).To(Equal(p.SharedDir))
		Expect(p.DataDir).NotTo(Equal(p.SharedDir))
	})
})
