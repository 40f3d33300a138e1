// Package serialport implements the optional local serial mirror: console
// traffic read from the remote tunnel is also written, best-effort, to a
// real local serial device so a hardware logic analyzer or secondary
// terminal can observe the session.
package serialport

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// openSerialPort is a seam so tests can substitute a fake port.
var openSerialPort = func(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// Open opens the named serial device at baud for mirroring.
func Open(name string, baud int) (Port, error) {
	return openSerialPort(name, baud, time.Second)
}
