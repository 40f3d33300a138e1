package fleet

import (
	"fmt"
	"io"
)

const (
	colBackend = 12
	colType    = 10
	colUser    = 12
	colTime    = 10
)

// WriteStatus renders a four-column table (Backend, Type, User, Time) with
// a header rule. A backend name seen on more than one server is reported
// once, keeping the first occurrence, so the table is deterministic even
// when the same backend is advertised by multiple responders.
func WriteStatus(w io.Writer, f *Fleet) {
	row := "| %-*s| %-*s| %-*s| %-*s|\n"
	fmt.Fprintf(w, row, colBackend, "Backend", colType, "Type", colUser, "User", colTime, "Time")
	fmt.Fprintf(w, "|-%s+-%s+-%s+-%s|\n",
		dashes(colBackend), dashes(colType), dashes(colUser), dashes(colTime))

	seen := make(map[string]struct{})
	for _, s := range f.Servers() {
		for _, b := range s.Backends {
			if _, dup := seen[b.Name]; dup {
				continue
			}
			seen[b.Name] = struct{}{}
			user, since := "None", "None"
			if b.Holder != nil {
				user, since = b.Holder.User, b.Holder.Since
			}
			fmt.Fprintf(w, row, colBackend, b.Name, colType, b.Type, colUser, user, colTime, since)
		}
	}
}

func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}
