package config

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load reads the config file at path and overlays its keys onto a copy of
// base, accumulating every problem encountered rather than stopping at
// the first — grounded on the teacher's config/loader.go Load(), which
// collects errors from each sub-loader before returning. A missing file
// at the default path is not an error (explicit is false when the caller
// is using the implicit default path); a missing file at an explicitly
// requested path is.
func Load(path string, explicit bool, base *Snapshot) (*Snapshot, error) {
	snap := base.Clone()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return snap, nil
		}
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	var problems []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		key, values, ok := parseKeyVal(scanner.Text())
		if !ok {
			continue
		}
		if err := applyKey(snap, key, values); err != nil {
			problems = append(problems, fmt.Sprintf("line %d: %v", lineNo, err))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	if len(problems) > 0 {
		joined := fmt.Errorf("config: %d problem(s) in %q", len(problems), path)
		for _, p := range problems {
			joined = fmt.Errorf("%w\n  - %s", joined, p)
		}
		return nil, joined
	}
	return snap, nil
}

// applyKey interprets one recognized config key against snap.
// Unrecognized keys are reported as problems by the caller via the
// returned error.
func applyKey(snap *Snapshot, key string, values []string) error {
	one := func() (string, error) {
		if len(values) != 1 {
			return "", fmt.Errorf("key %q expects exactly one value, got %d", key, len(values))
		}
		return values[0], nil
	}
	boolVal := func() (bool, error) {
		v, err := one()
		if err != nil {
			return false, err
		}
		return parseBool(v)
	}
	durationSeconds := func() (time.Duration, error) {
		v, err := one()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("key %q: %w", key, err)
		}
		return time.Duration(n) * time.Second, nil
	}
	durationMillis := func() (time.Duration, error) {
		v, err := one()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("key %q: %w", key, err)
		}
		return time.Duration(n) * time.Millisecond, nil
	}

	switch strings.ToLower(key) {
	case "daemon":
		b, err := boolVal()
		if err != nil {
			return err
		}
		snap.Daemon = b
	case "ramdisk":
		v, err := one()
		if err != nil {
			return err
		}
		if strings.EqualFold(v, "auto") {
			snap.Ramdisk = StagingAuto
		} else {
			b, err := parseBool(v)
			if err != nil {
				return err
			}
			if b {
				snap.Ramdisk = StagingOn
			} else {
				snap.Ramdisk = StagingOff
			}
		}
	case "interval":
		d, err := durationSeconds()
		if err != nil {
			return err
		}
		snap.Interval = d
	case "loglevel":
		v, err := one()
		if err != nil {
			return err
		}
		snap.LogLevel = strings.ToLower(v)
	case "database":
		v, err := one()
		if err != nil {
			return err
		}
		snap.Database = v
	case "inet pinghosts":
		snap.InetPingHosts = values
	case "inet pingtimeout":
		d, err := durationMillis()
		if err != nil {
			return err
		}
		snap.InetPingTimeout = d
	case "modem powercontrol":
		b, err := boolVal()
		if err != nil {
			return err
		}
		snap.ModemPowerControl = b
	case "modem powerupdelay":
		d, err := durationSeconds()
		if err != nil {
			return err
		}
		snap.ModemPowerUpDelay = d
	case "modem ip":
		v, err := one()
		if err != nil {
			return err
		}
		ip := net.ParseIP(v)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("modem ip %q is not a valid IPv4 literal", v)
		}
		snap.ModemIP = ip
	case "modem pingtimeout":
		d, err := durationMillis()
		if err != nil {
			return err
		}
		snap.ModemPingTimeout = d
	case "modem scrubber":
		v, err := one()
		if err != nil {
			return err
		}
		snap.ModemScrubber = v
	case "modem scrubbertimeout":
		d, err := durationMillis()
		if err != nil {
			return err
		}
		snap.ModemScrubberTimeout = d
	case "schedule dst":
		b, err := boolVal()
		if err != nil {
			return err
		}
		snap.ScheduleDST = b
	case "schedule":
		v, err := one()
		if err != nil {
			return err
		}
		snap.ScheduleString = v
	default:
		return fmt.Errorf("unrecognized key %q", key)
	}
	return nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	default:
		return false, fmt.Errorf("value %q is not a recognized boolean", v)
	}
}
