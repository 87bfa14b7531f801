package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// dumpable is the YAML-serializable mirror of Snapshot, used only for the
// -writeconfig admin command: the live config file on
// disk keeps its own keyval grammar, but a structured dump of the
// effective, fully-resolved configuration is easier to diff and review,
// so it borrows the teacher's YAML library for that one purpose.
type dumpable struct {
	Daemon  bool   `yaml:"daemon"`
	Ramdisk string `yaml:"ramdisk"`

	IntervalSeconds int    `yaml:"interval_seconds"`
	LogLevel        string `yaml:"loglevel"`
	Database        string `yaml:"database"`

	InetPingHosts      []string `yaml:"inet_pinghosts"`
	InetPingTimeoutMS  int      `yaml:"inet_pingtimeout_ms"`

	ModemPowerControl       bool   `yaml:"modem_powercontrol"`
	ModemPowerUpDelaySeconds int   `yaml:"modem_powerupdelay_seconds"`
	ModemIP                 string `yaml:"modem_ip"`
	ModemPingTimeoutMS      int    `yaml:"modem_pingtimeout_ms"`
	ModemScrubber           string `yaml:"modem_scrubber"`
	ModemScrubberTimeoutMS  int    `yaml:"modem_scrubbertimeout_ms"`

	ScheduleDST    bool   `yaml:"schedule_dst"`
	ScheduleString string `yaml:"schedule"`
}

// WriteConfig serializes the effective snapshot as YAML, for the
// -writeconfig admin command.
func WriteConfig(snap *Snapshot) ([]byte, error) {
	d := dumpable{
		Daemon:                   snap.Daemon,
		Ramdisk:                  ramdiskString(snap.Ramdisk),
		IntervalSeconds:          int(snap.Interval / time.Second),
		LogLevel:                 snap.LogLevel,
		Database:                 snap.Database,
		InetPingHosts:            snap.InetPingHosts,
		InetPingTimeoutMS:        int(snap.InetPingTimeout / time.Millisecond),
		ModemPowerControl:        snap.ModemPowerControl,
		ModemPowerUpDelaySeconds: int(snap.ModemPowerUpDelay / time.Second),
		ModemIP:                  ipString(snap.ModemIP),
		ModemPingTimeoutMS:       int(snap.ModemPingTimeout / time.Millisecond),
		ModemScrubber:            snap.ModemScrubber,
		ModemScrubberTimeoutMS:   int(snap.ModemScrubberTimeout / time.Millisecond),
		ScheduleDST:              snap.ScheduleDST,
		ScheduleString:           snap.ScheduleString,
	}
	return yaml.Marshal(d)
}
