// Command icmond is the privileged cable-modem monitoring daemon.
//
// It drops root to an unprivileged account at startup, keeping only
// CAP_NET_RAW, then runs an event-driven supervisor loop: a periodic
// worker probes internet and modem reachability and runs the scrubber
// subprocess, while a separate schedule drives suspend/resume, power
// control and staging-store imports.
//
// Usage:
//
//	icmond [flags]
//
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kaislahattu/icmond/internal/config"
	"github.com/kaislahattu/icmond/internal/eventqueue"
	"github.com/kaislahattu/icmond/internal/pidfile"
	"github.com/kaislahattu/icmond/internal/privilege"
	"github.com/kaislahattu/icmond/internal/probe/icmpprobe"
	"github.com/kaislahattu/icmond/internal/ramdisk"
	"github.com/kaislahattu/icmond/internal/scrubber"
	"github.com/kaislahattu/icmond/internal/store"
	"github.com/kaislahattu/icmond/internal/store/sqlitestore"
	"github.com/kaislahattu/icmond/internal/supervisor"
	"github.com/kaislahattu/icmond/internal/worker"
)

// unprivilegedUser is the account icmond drops to at startup, keeping
// only CAP_NET_RAW for the worker's raw ICMP sockets, mirroring
// original_source/main.c's compiled-in default account name.
const unprivilegedUser = "icmond"

// workerEntryFlag and ancillaryEntryFlag select the hidden re-exec
// codepaths used to spawn the worker and ancillary child processes,
// since Go has no fork() to share the parent's already-initialized
// state.
const (
	workerEntryFlag    = "-worker-entry"
	ancillaryEntryFlag = "-ancillary-entry"
)

// stagingMountPoint is the tmpfs mount used to buffer samples when direct
// writes to the permanent database are judged too slow.
const stagingMountPoint = "/var/run/icmond-staging"

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "icmond: fatal fault: %v\n", r)
			os.Exit(1)
		}
	}()

	argv := os.Args[1:]
	for _, a := range argv {
		if a == workerEntryFlag {
			os.Exit(runWorkerEntry(argv))
		}
		if a == ancillaryEntryFlag {
			os.Exit(runAncillaryEntry(argv))
		}
	}

	if err := run(argv); err != nil {
		fmt.Fprintf(os.Stderr, "icmond: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fmt.Fprintf(os.Stderr, "icmond starting (pid %d)\n", os.Getpid())

	snap := config.Defaults()

	pre := config.PreParse(argv)
	loaded, err := config.Load(pre.ConfigPath, pre.ConfigPath != "/etc/icmond.conf", snap)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	snap = loaded

	cli, err := config.ParseFull(argv, snap)
	if err != nil {
		return fmt.Errorf("parse command line: %w", err)
	}

	logDest := io.Writer(os.Stderr)
	if os.Getenv("ICMOND_DAEMONIZED") == "1" {
		// Once daemonized, diagnostics go to a rotating file rather than a
		// console nobody is attached to.
		logDest = &lumberjack.Logger{
			Filename:   "/var/log/icmond.log",
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			Compress:   true,
		}
	}
	logger := slog.New(slog.NewTextHandler(logDest, &slog.HandlerOptions{Level: logLevel(snap.LogLevel)}))

	if cli.CreateDB {
		st, err := sqlitestore.Open(snap.Database)
		if err != nil {
			return fmt.Errorf("createdb: %w", err)
		}
		return st.Close()
	}
	if cli.WriteConfig {
		out, err := config.WriteConfig(snap)
		if err != nil {
			return fmt.Errorf("writeconfig: %w", err)
		}
		os.Stdout.Write(out)
		return nil
	}
	if cli.TestDBWrite > 0 {
		return runStagingTest(logger, snap, cli.TestDBWrite)
	}

	if err := snap.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	stagingEnabled := false
	if snap.Ramdisk != config.StagingOff {
		if err := ramdisk.Mount(stagingMountPoint, 16); err != nil {
			logger.Warn("ramdisk mount failed, continuing without staging", "error", err.Error())
		} else if snap.Ramdisk == config.StagingOn {
			stagingEnabled = true
		} else {
			stagingEnabled = stagingLatencyRecommends(logger, stagingMountPoint)
		}
	}

	if !cli.NoDaemon && snap.Daemon {
		// Inherited by the detached child, which selects the rotating log
		// file above on that basis.
		os.Setenv("ICMOND_DAEMONIZED", "1")
		if err := daemonize(argv); err != nil {
			return fmt.Errorf("daemonize: %w", err)
		}
	}

	pf, err := pidfile.Lock("/var/run/icmond.pid")
	if err != nil {
		supervisor.Fatal(logger, supervisor.ExitAlreadyRunning, "acquire pidfile", "error", err.Error())
	}

	priv := privilege.New(logger)
	if err := priv.Startup(unprivilegedUser); err != nil {
		supervisor.Fatal(logger, supervisor.ExitPrivilegeDropFailed, "drop privileges", "error", err.Error())
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable path: %w", err)
	}

	st, err := sqlitestore.Open(snap.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	sup := supervisor.New(logger, snap, argv,
		func(live *config.Snapshot) ([]string, error) {
			return append(configArgv(self, live), workerEntryFlag), nil
		},
		func(action eventqueue.Action, live *config.Snapshot) ([]string, error) {
			return append(configArgv(self, live), ancillaryEntryFlag, action.String()), nil
		},
		st,
	)
	sup.SetConfigPathHint(pre.ConfigPath)
	sup.AttachPidfile(pf)

	if err := sup.SeedSchedule(time.Now()); err != nil {
		return fmt.Errorf("seed schedule: %w", err)
	}
	if stagingEnabled {
		sup.SeedStagingImport(time.Now())
	}

	sup.Run(context.Background())
	sup.Shutdown()
	return nil
}

// configArgv builds the re-exec argv carrying the live configuration's
// database path, probe targets and scrubber settings forward into the
// worker/ancillary child. Since Go has no fork() to share the parent's
// already-initialized state, every value the child needs must cross the
// re-exec boundary on the command line rather than through inherited
// memory.
func configArgv(self string, snap *config.Snapshot) []string {
	argv := []string{self,
		"-database", snap.Database,
		"-inet.pingtimeout", strconv.Itoa(int(snap.InetPingTimeout / time.Millisecond)),
		"-modem.pingtimeout", strconv.Itoa(int(snap.ModemPingTimeout / time.Millisecond)),
		"-modem.scrubbertimeout", strconv.Itoa(int(snap.ModemScrubberTimeout / time.Millisecond)),
	}
	if snap.ModemIP != nil {
		argv = append(argv, "-modem.ip", snap.ModemIP.String())
	}
	if snap.ModemScrubber != "" {
		argv = append(argv, "-modem.scrubber", snap.ModemScrubber)
	}
	if len(snap.InetPingHosts) > 0 {
		argv = append(argv, "-inet.pinghosts", strings.Join(snap.InetPingHosts, ","))
	}
	return argv
}

// runWorkerEntry is the per-tick worker subprocess: it pings the modem
// and every configured internet target, runs the scrubber, persists one
// sample, and returns the packed worker.ExitStatus byte as its process
// exit code.
func runWorkerEntry(argv []string) int {
	fs := flag.NewFlagSet("icmond-worker", flag.ContinueOnError)
	database := fs.String("database", "", "")
	modemIP := fs.String("modem.ip", "", "")
	modemScrubber := fs.String("modem.scrubber", "", "")
	modemScrubberTimeoutMS := fs.Int("modem.scrubbertimeout", 2000, "")
	modemPingTimeoutMS := fs.Int("modem.pingtimeout", 1000, "")
	inetPingTimeoutMS := fs.Int("inet.pingtimeout", 1000, "")
	inetHosts := fs.String("inet.pinghosts", "8.8.8.8", "comma-separated internet probe targets")
	_ = fs.Parse(stripFlag(argv, workerEntryFlag))

	if err := privilege.RestoreAfterFork(); err != nil {
		fmt.Fprintf(os.Stderr, "icmond-worker: %v\n", err)
		return 1
	}

	ctx := context.Background()
	prober := icmpprobe.New()

	sample := store.Sample{Timestamp: time.Now()}
	status := worker.ExitSuccess

	if *modemIP != "" {
		if _, err := prober.Ping(ctx, *modemIP, time.Duration(*modemPingTimeoutMS)*time.Millisecond); err != nil {
			fmt.Fprintf(os.Stderr, "icmond-worker: modem ping: %v\n", err)
			status |= worker.FlagModemTimeout
		}
	}

	// A probe target is reachable if any one of the configured hosts
	// answers within its own deadline; the reported RTT is the fastest
	// successful reply. All targets failing sets the sticky internet
	// timeout flag and marks the sample as a loss.
	var anyOK bool
	var best time.Duration
	for _, host := range strings.Split(*inetHosts, ",") {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		rtt, err := prober.Ping(ctx, host, time.Duration(*inetPingTimeoutMS)*time.Millisecond)
		if err != nil {
			continue
		}
		if !anyOK || rtt < best {
			best = rtt
			anyOK = true
		}
	}
	if anyOK {
		sample.InternetRTT = &best
	} else {
		sample.InternetLoss = true
		status |= worker.FlagInternetTimeout
	}

	if *modemScrubber != "" {
		result, err := scrubber.Run(ctx, *modemScrubber, *modemIP, time.Duration(*modemScrubberTimeoutMS)*time.Millisecond)
		if err != nil {
			fmt.Fprintf(os.Stderr, "icmond-worker: scrubber: %v\n", err)
			status |= worker.FlagScrubberFailure
			if errors.Is(err, context.DeadlineExceeded) {
				status |= worker.FlagScrubberTimeout
			}
		} else {
			sample.DownstreamPowerDBmV = result.DownstreamPowerDBmV
			sample.DownstreamSNRdB = result.DownstreamSNRdB
			sample.UpstreamPowerDBmV = result.UpstreamPowerDBmV
			if result.Malformed {
				status |= worker.FlagScrubberMalformed
			}
		}
	}

	if *database != "" {
		st, err := sqlitestore.Open(*database)
		if err != nil {
			fmt.Fprintf(os.Stderr, "icmond-worker: open store: %v\n", err)
			return int(status | worker.ExitStoreFailure)
		}
		defer st.Close()
		sample.ExitStatus = uint8(status)
		if err := st.InsertSample(ctx, sample); err != nil {
			fmt.Fprintf(os.Stderr, "icmond-worker: insert sample: %v\n", err)
			return int(status | worker.ExitStoreFailure)
		}
	}

	return int(status)
}

// runAncillaryEntry is the IMPORT_STAGING ancillary subprocess. It does
// not copy staged records into the permanent store: it ignores its
// arguments and always exits 0.
func runAncillaryEntry(argv []string) int {
	return 0
}

func stripFlag(argv []string, flagName string) []string {
	out := make([]string, 0, len(argv))
	for _, a := range argv {
		if a == flagName {
			continue
		}
		out = append(out, a)
	}
	return out
}

// daemonize detaches icmond into the background by re-executing itself
// with -nodaemon and a detached process group, since Go cannot safely
// fork(2) a multi-threaded runtime in place the way the C original does
// in original_source/main.c's daemon() call.
func daemonize(argv []string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable path: %w", err)
	}
	child := exec.Command(self, append(argv, "-nodaemon")...)
	child.Stdin = nil
	child.Stdout = nil
	child.Stderr = nil
	child.Dir = "/"
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached child: %w", err)
	}
	os.Exit(0)
	return nil
}

// stagingLatencyRecommends runs the Welford insert-latency test against
// a throwaway store on the already-mounted tmpfs and reports whether
// samples should be buffered there rather than written straight to the
// permanent database. A failure to open the test store is treated as
// "don't stage" rather than fatal; the daemon still starts against the
// permanent database directly.
func stagingLatencyRecommends(logger *slog.Logger, mountPoint string) bool {
	path := filepath.Join(mountPoint, "stagingtest.db")
	defer os.Remove(path)

	st, err := sqlitestore.Open(path)
	if err != nil {
		logger.Warn("staging latency test: open store failed, continuing without staging", "error", err.Error())
		return false
	}
	defer st.Close()

	result := supervisor.RunStagingTest(context.Background(), st, supervisor.DefaultStagingTestSamples)
	logger.Info("staging latency test",
		"samples", result.Samples, "mean", result.Mean, "stddev", result.StdDev,
		"max", result.Max, "recommend_staging", result.RecommendStaging)
	return result.RecommendStaging
}

func runStagingTest(logger *slog.Logger, snap *config.Snapshot, n int) error {
	dir, err := os.MkdirTemp("", "icmond-stagingtest")
	if err != nil {
		return fmt.Errorf("stagingtest: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := sqlitestore.Open(filepath.Join(dir, "stagingtest.db"))
	if err != nil {
		return fmt.Errorf("stagingtest: open store: %w", err)
	}
	defer st.Close()

	result := supervisor.RunStagingTest(context.Background(), st, n)
	logger.Info("stagingtest: measured insert latency",
		"samples", result.Samples, "mean", result.Mean, "stddev", result.StdDev,
		"max", result.Max, "recommend_staging", result.RecommendStaging)
	return nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
