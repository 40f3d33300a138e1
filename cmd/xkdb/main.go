package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/real-xinu/xkdb/internal/action"
	"github.com/real-xinu/xkdb/internal/discovery"
	"github.com/real-xinu/xkdb/internal/fleet"
	"github.com/real-xinu/xkdb/internal/metrics"
	"github.com/real-xinu/xkdb/internal/serialport"
	"github.com/real-xinu/xkdb/internal/session"
	"github.com/real-xinu/xkdb/internal/tunnel"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, showVersion, err := parseFlags(args)
	if showVersion {
		fmt.Printf("xkdb %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)
	defer wg.Wait()

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })
		httpSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = httpSrv.Shutdown(context.Background()) }()
	}

	addrs, err := broadcastAddrs()
	if err != nil {
		l.Error("broadcast_enum_failed", "error", err)
		return 1
	}
	extra := addrs
	if cfg.mdnsEnable {
		if found := browseMDNS(ctx, cfg.mdnsTimeout); len(found) > 0 {
			extra = append(addrs, found...)
			l.Info("mdns_supplemented_discovery", "found", len(found))
		}
	}

	f, err := discovery.Discover(addrs, discovery.Options{
		Class:      cfg.class,
		Timeout:    cfg.discoveryTO,
		ExtraAddrs: extraBeyond(addrs, extra),
	})
	if err != nil {
		l.Error("discovery_failed", "error", err)
		return 1
	}

	if cfg.status {
		fleet.WriteStatus(os.Stdout, f)
		return 0
	}

	server, backend, err := selectBackend(f, cfg.backend)
	if err != nil {
		var inUse *fleet.InUseError
		switch {
		case errors.As(err, &inUse):
			fmt.Printf("Backend %s is in use by %s\n", inUse.Backend, inUse.Holder.User)
			return 0
		case errors.Is(err, fleet.ErrNotFound):
			fmt.Printf("Backend %s not found\n", cfg.backend)
			return 0
		case errors.Is(err, fleet.ErrNoneAvailable):
			fmt.Println("No backend available")
			return 0
		default:
			l.Error("selection_failed", "error", err)
			return 1
		}
	}

	sessOpts := session.Options{Timeout: cfg.sessionTO}

	if !cfg.noUpload {
		if err := uploadImage(server.Addr, backend.Name, cfg.imagePath, sessOpts); err != nil {
			l.Error("upload_failed", "error", err)
			return 1
		}
	}

	ticket, err := session.Request(server.Addr, backend.Name, backend.Type, sessOpts)
	if err != nil {
		l.Error("session_request_failed", "error", err)
		return 1
	}
	remote, err := net.Dial("tcp", fmt.Sprintf("%s:%d", ticket.Remote, ticket.Port))
	if err != nil {
		l.Error("session_dial_failed", "error", err)
		return 1
	}

	debugListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		l.Error("debug_listener_failed", "error", err)
		_ = remote.Close()
		return 1
	}
	tnl := tunnel.New(remote, debugListener)
	port := tnl.DebuggerPort()
	fmt.Printf("debugger listening on localhost:%d\n", port)

	if err := writeDebugScript(cfg.executable, port); err != nil {
		l.Error("debug_script_failed", "error", err)
		_ = tnl.Close()
		return 1
	}

	if !cfg.noPowercycle {
		if err := action.Powercycle(server.Addr, backend.Name, sessOpts); err != nil {
			l.Error("powercycle_failed", "error", err)
			_ = tnl.Close()
			return 1
		}
	}

	stdout := io.Writer(os.Stdout)
	if cfg.mirrorSerial != "" {
		port, err := serialport.Open(cfg.mirrorSerial, cfg.mirrorBaud)
		if err != nil {
			l.Warn("mirror_serial_open_failed", "error", err)
		} else {
			mirror := serialport.NewMirror(ctx, port)
			defer mirror.Close()
			stdout = io.MultiWriter(os.Stdout, mirrorWriter{mirror})
		}
	}

	restore, err := rawTerminal()
	if err != nil {
		l.Error("raw_terminal_failed", "error", err)
		_ = tnl.Close()
		return 1
	}
	defer restore()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			_ = tnl.Close()
		case <-ctx.Done():
		}
	}()

	if err := tnl.Run(os.Stdin, stdout); err != nil {
		l.Error("tunnel_error", "error", err)
		return 1
	}
	return 0
}

func selectBackend(f *fleet.Fleet, name string) (fleet.ServerRecord, fleet.BackendRecord, error) {
	if name == "" {
		return fleet.PickFree(f)
	}
	return fleet.PickNamed(f, name)
}

func uploadImage(serverAddr net.IP, backendName, path string, opts session.Options) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()
	return action.UploadImage(serverAddr, backendName, file, opts)
}

// extraBeyond returns the subset of candidate not already present in base,
// so mDNS-surfaced addresses don't duplicate the broadcast probe set.
func extraBeyond(base, candidate []net.IP) []net.IP {
	seen := make(map[string]struct{}, len(base))
	for _, ip := range base {
		seen[ip.String()] = struct{}{}
	}
	var out []net.IP
	for _, ip := range candidate {
		if _, ok := seen[ip.String()]; ok {
			continue
		}
		out = append(out, ip)
	}
	return out
}

type mirrorWriter struct{ m *serialport.Mirror }

func (w mirrorWriter) Write(p []byte) (int, error) {
	w.m.Write(p)
	return len(p), nil
}
