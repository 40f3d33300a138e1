package fleet

import (
	"errors"
	"fmt"
)

// ErrNoneAvailable indicates every backend in the fleet is currently held.
var ErrNoneAvailable = errors.New("fleet: no free backend available")

// ErrNotFound indicates the named backend does not appear in the fleet.
var ErrNotFound = errors.New("fleet: backend not found")

// InUseError reports that an explicitly selected backend is already held.
type InUseError struct {
	Backend string
	Holder  Holder
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("fleet: backend %s is in use by %s", e.Backend, e.Holder.User)
}

// PickFree returns the first backend, in server then backend order, whose
// holder is absent. It never selects a held backend.
func PickFree(f *Fleet) (ServerRecord, BackendRecord, error) {
	for _, s := range f.Servers() {
		for _, b := range s.Backends {
			if Free(b) {
				return s, b, nil
			}
		}
	}
	return ServerRecord{}, BackendRecord{}, ErrNoneAvailable
}

// PickNamed finds the backend with the given exact name anywhere in the
// fleet. It returns ErrNotFound if absent, or an *InUseError if the backend
// exists but is currently held by someone.
func PickNamed(f *Fleet, name string) (ServerRecord, BackendRecord, error) {
	for _, s := range f.Servers() {
		for _, b := range s.Backends {
			if b.Name != name {
				continue
			}
			if !Free(b) {
				return ServerRecord{}, BackendRecord{}, &InUseError{Backend: b.Name, Holder: *b.Holder}
			}
			return s, b, nil
		}
	}
	return ServerRecord{}, BackendRecord{}, ErrNotFound
}
