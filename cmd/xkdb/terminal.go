package main

import (
	"os"

	"golang.org/x/term"
)

// rawTerminal puts stdin into raw mode for the duration of the interactive
// session (so keystrokes reach the remote one at a time, unbuffered and
// unechoed locally) and returns a restore function.
func rawTerminal() (restore func(), err error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, state) }, nil
}
