package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

type appConfig struct {
	backend         string // positional BACKEND, empty means pick_free
	class           string
	status          bool
	imagePath       string
	executable      string
	noPowercycle    bool
	noUpload        bool
	discoveryTO     time.Duration
	sessionTO       time.Duration
	mdnsEnable      bool
	mdnsTimeout     time.Duration
	mirrorSerial    string
	mirrorBaud      int
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
}

func parseFlags(args []string) (*appConfig, bool, error) {
	fs := flag.NewFlagSet("xkdb", flag.ContinueOnError)
	cfg := &appConfig{}

	class := fs.String("class", "", "Backend class (default from CS_CLASS env var, else \"quark\")")
	typeAlias := fs.String("type", "", "Alias for --class")
	status := fs.Bool("status", false, "Print the fleet status table and exit")
	xinu := fs.String("xinu", "xinu", "Path to the image file to upload")
	executable := fs.String("executable", "xinu.elf", "Local executable path recorded in the debugger startup script")
	noPowercycle := fs.Bool("no-powercycle", false, "Skip the power-cycle step")
	noUpload := fs.Bool("no-upload", false, "Skip the image upload step")
	discoveryTO := fs.Duration("discovery-timeout", 2*time.Second, "Per-address discovery receive timeout")
	sessionTO := fs.Duration("session-timeout", 2*time.Second, "Session request receive timeout")
	mdnsEnable := fs.Bool("mdns", false, "Supplement broadcast discovery with an mDNS browse")
	mdnsTimeout := fs.Duration("mdns-timeout", time.Second, "mDNS browse window")
	mirrorSerial := fs.String("mirror-serial", "", "Mirror console output to this local serial device (empty disables)")
	mirrorBaud := fs.Int("mirror-baud", 115200, "Baud rate for --mirror-serial")
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := fs.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}
	if *showVersion {
		return nil, true, nil
	}

	cfg.class = *class
	if cfg.class == "" {
		cfg.class = *typeAlias
	}
	if cfg.class == "" {
		if v := strings.TrimSpace(os.Getenv("CS_CLASS")); v != "" {
			cfg.class = v
		} else {
			cfg.class = "quark"
		}
	}
	cfg.status = *status
	cfg.imagePath = *xinu
	cfg.executable = *executable
	cfg.noPowercycle = *noPowercycle
	cfg.noUpload = *noUpload
	cfg.discoveryTO = *discoveryTO
	cfg.sessionTO = *sessionTO
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsTimeout = *mdnsTimeout
	cfg.mirrorSerial = *mirrorSerial
	cfg.mirrorBaud = *mirrorBaud
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery

	if rest := fs.Args(); len(rest) > 0 {
		cfg.backend = rest[0]
	}

	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.discoveryTO <= 0 {
		return fmt.Errorf("discovery-timeout must be > 0")
	}
	if c.sessionTO <= 0 {
		return fmt.Errorf("session-timeout must be > 0")
	}
	if c.mirrorBaud <= 0 {
		return fmt.Errorf("mirror-baud must be > 0 (got %d)", c.mirrorBaud)
	}
	return nil
}
