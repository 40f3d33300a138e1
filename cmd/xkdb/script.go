package main

import (
	"fmt"
	"os"
	"path/filepath"
)

const scriptTimeout = 30 // seconds; the debugger's own connect-retry budget

// writeDebugScript (re)writes ~/.xkdb with a startup script that points a
// symbolic debugger at the loopback port DebugBridge is listening on.
func writeDebugScript(executable string, port int) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("debug script: locate home dir: %w", err)
	}
	path := filepath.Join(home, ".xkdb")
	body := fmt.Sprintf(
		"file %s\ntarget remote localhost:%d\nset remotetimeout %d\n",
		executable, port, scriptTimeout,
	)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("debug script: write %s: %w", path, err)
	}
	return nil
}
