package config

import (
	"flag"
	"fmt"
	"net"
	"time"
)

// CLI holds the parsed command-line overlay plus the three admin
// one-shot flags. Every config key is also a flag, and the command line
// always wins over the file.
type CLI struct {
	ConfigPath string
	NoDaemon   bool
	CreateDB   bool
	WriteConfig bool
	TestDBWrite int // 0 = flag absent

	set *flag.FlagSet
	raw map[string]*string
}

// PreParse reads only -config, -createdb and -writeconfig from argv,
// ignoring everything else and never erroring on unknown flags — this is
// startup step 4, "pre-read command line for three items only", which
// must succeed before the config file path is even known.
func PreParse(argv []string) CLI {
	fs := flag.NewFlagSet("icmond-preparse", flag.ContinueOnError)
	fs.SetOutput(discard{})
	var c CLI
	fs.StringVar(&c.ConfigPath, "config", "/etc/icmond.conf", "")
	fs.BoolVar(&c.CreateDB, "createdb", false, "")
	fs.BoolVar(&c.WriteConfig, "writeconfig", false, "")
	// Parse stops at the first unknown flag or non-flag argument; step
	// past it and resume, so the three flags are found wherever they sit.
	for len(argv) > 0 {
		_ = fs.Parse(argv) // unknown flags are expected and ignored here
		rest := fs.Args()
		if len(rest) == len(argv) {
			rest = rest[1:]
		}
		argv = rest
	}
	return c
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// ParseFull builds the full flag set mirroring every config key plus the
// admin/control flags, and overlays whatever was actually set on snap.
// Command-line values always win; flags the user did not pass are left
// untouched on snap.
func ParseFull(argv []string, snap *Snapshot) (CLI, error) {
	var c CLI
	fs := flag.NewFlagSet("icmond", flag.ContinueOnError)

	configPath := fs.String("config", "/etc/icmond.conf", "alternate config file path")
	noDaemon := fs.Bool("nodaemon", false, "run in the foreground instead of detaching")
	createDB := fs.Bool("createdb", false, "create the persistent store schema and exit")
	writeConfig := fs.Bool("writeconfig", false, "write the effective configuration and exit")
	testDBWrite := fs.Int("testdbwrite", 0, "measure N insert latencies and exit")

	daemon := fs.Bool("daemon", snap.Daemon, "run detached")
	ramdisk := fs.String("ramdisk", ramdiskString(snap.Ramdisk), "enable staging store: true/false/auto")
	interval := fs.Int("interval", int(snap.Interval/time.Second), "probe period in seconds")
	loglevel := fs.String("loglevel", snap.LogLevel, "error/info/debug")
	database := fs.String("database", snap.Database, "persistent store path")
	inetPingTimeout := fs.Int("inet.pingtimeout", int(snap.InetPingTimeout/time.Millisecond), "internet probe deadline in ms")
	modemPowerControl := fs.Bool("modem.powercontrol", snap.ModemPowerControl, "enable auto POWER_ON insertion")
	modemPowerUpDelay := fs.Int("modem.powerupdelay", int(snap.ModemPowerUpDelay/time.Second), "offset for auto POWER_ON, seconds")
	modemIP := fs.String("modem.ip", ipString(snap.ModemIP), "modem probe target (IPv4)")
	modemPingTimeout := fs.Int("modem.pingtimeout", int(snap.ModemPingTimeout/time.Millisecond), "modem probe deadline in ms")
	modemScrubber := fs.String("modem.scrubber", snap.ModemScrubber, "data-collection subprocess path")
	modemScrubberTimeout := fs.Int("modem.scrubbertimeout", int(snap.ModemScrubberTimeout/time.Millisecond), "scrubber deadline in ms")
	scheduleDST := fs.Bool("schedule.dst", snap.ScheduleDST, "apply DST to schedule arithmetic")
	schedule := fs.String("schedule", snap.ScheduleString, "event schedule string")

	if err := fs.Parse(argv); err != nil {
		return c, fmt.Errorf("config: parse command line: %w", err)
	}

	passed := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { passed[f.Name] = true })

	if passed["daemon"] {
		snap.Daemon = *daemon
	}
	if passed["ramdisk"] {
		mode, err := parseStagingMode(*ramdisk)
		if err != nil {
			return c, err
		}
		snap.Ramdisk = mode
	}
	if passed["interval"] {
		snap.Interval = time.Duration(*interval) * time.Second
	}
	if passed["loglevel"] {
		snap.LogLevel = *loglevel
	}
	if passed["database"] {
		snap.Database = *database
	}
	if passed["inet.pingtimeout"] {
		snap.InetPingTimeout = time.Duration(*inetPingTimeout) * time.Millisecond
	}
	if passed["modem.powercontrol"] {
		snap.ModemPowerControl = *modemPowerControl
	}
	if passed["modem.powerupdelay"] {
		snap.ModemPowerUpDelay = time.Duration(*modemPowerUpDelay) * time.Second
	}
	if passed["modem.ip"] {
		ip := net.ParseIP(*modemIP)
		if ip == nil {
			return c, fmt.Errorf("config: -modem.ip %q is not a valid IP", *modemIP)
		}
		snap.ModemIP = ip
	}
	if passed["modem.pingtimeout"] {
		snap.ModemPingTimeout = time.Duration(*modemPingTimeout) * time.Millisecond
	}
	if passed["modem.scrubber"] {
		snap.ModemScrubber = *modemScrubber
	}
	if passed["modem.scrubbertimeout"] {
		snap.ModemScrubberTimeout = time.Duration(*modemScrubberTimeout) * time.Millisecond
	}
	if passed["schedule.dst"] {
		snap.ScheduleDST = *scheduleDST
	}
	if passed["schedule"] {
		snap.ScheduleString = *schedule
	}

	c.ConfigPath = *configPath
	c.NoDaemon = *noDaemon
	c.CreateDB = *createDB
	c.WriteConfig = *writeConfig
	c.TestDBWrite = *testDBWrite
	c.set = fs
	return c, nil
}

func ramdiskString(m StagingMode) string {
	switch m {
	case StagingOn:
		return "true"
	case StagingOff:
		return "false"
	default:
		return "auto"
	}
}

func parseStagingMode(v string) (StagingMode, error) {
	if v == "" {
		return StagingAuto, nil
	}
	switch v[0] {
	case 'a', 'A':
		return StagingAuto, nil
	}
	b, err := parseBool(v)
	if err != nil {
		return StagingOff, fmt.Errorf("config: ramdisk value %q: %w", v, err)
	}
	if b {
		return StagingOn, nil
	}
	return StagingOff, nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
