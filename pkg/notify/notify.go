// Package notify implements the sd_notify readiness protocol as spoken
// between a supervised process and its supervisor: newline-separated
// KEY=VALUE datagrams on a connectionless Unix socket. It is shared by
// the container-side wrapper (which receives datagrams from the target
// application) and the host-side waiter (which replays them to the real
// supervisor).
package notify

import (
	"strings"
)

// EnvSocket is the environment variable through which the notification
// socket path is advertised to a supervised process.
const EnvSocket = "NOTIFY_SOCKET"

// Recognized notification keys.
const (
	KeyReady    = "READY"
	KeyStatus   = "STATUS"
	KeyMainPID  = "MAINPID"
	KeyErrno    = "ERRNO"
	KeyWatchdog = "WATCHDOG"
	KeyBusError = "BUSERROR"
)

// recognizedKeys fixes the encode order so Encode is deterministic.
var recognizedKeys = []string{
	KeyReady, KeyStatus, KeyMainPID, KeyErrno, KeyWatchdog, KeyBusError,
}

func isRecognized(key string) bool {
	for _, k := range recognizedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Record is the decoded content of one notification datagram.
// It is immutable once built; accessors interpret the recognized keys.
type Record struct {
	fields map[string]string
	extra  []string // unrecognized KEY=VALUE lines, preserved verbatim
}

// ParseDatagram decodes one datagram payload. Malformed lines (no '=',
// empty key) are skipped individually so a corrupt line never discards
// the valid keys around it. The number of skipped lines is returned for
// diagnostic logging.
func ParseDatagram(payload []byte) (Record, int) {
	rec := Record{fields: make(map[string]string)}
	skipped := 0

	for _, line := range strings.Split(string(payload), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			skipped++
			continue
		}
		key, value := line[:idx], line[idx+1:]
		if isRecognized(key) {
			rec.fields[key] = value
		} else {
			rec.extra = append(rec.extra, line)
		}
	}

	return rec, skipped
}

// MakeRecord builds a Record from key/value pairs. Unrecognized keys go
// to the opaque section, same as on the decode path.
func MakeRecord(pairs map[string]string) Record {
	rec := Record{fields: make(map[string]string)}
	for key, value := range pairs {
		if isRecognized(key) {
			rec.fields[key] = value
		} else {
			rec.extra = append(rec.extra, key+"="+value)
		}
	}
	return rec
}

// Encode renders the record back into the wire format: recognized keys
// in fixed order, then opaque lines as received. The recognized pairs
// round-trip through ParseDatagram; opaque passthrough is best-effort.
func (r Record) Encode() []byte {
	var lines []string
	for _, key := range recognizedKeys {
		if value, ok := r.fields[key]; ok {
			lines = append(lines, key+"="+value)
		}
	}
	lines = append(lines, r.extra...)
	return []byte(strings.Join(lines, "\n"))
}

// Get returns the raw value of a recognized key.
func (r Record) Get(key string) (string, bool) {
	value, ok := r.fields[key]
	return value, ok
}

// Len returns the number of recognized pairs in the record.
func (r Record) Len() int {
	return len(r.fields)
}

// Ready reports whether the record carries READY=1.
func (r Record) Ready() bool {
	return r.fields[KeyReady] == "1"
}

// Watchdog reports whether the record carries WATCHDOG=1.
func (r Record) Watchdog() bool {
	return r.fields[KeyWatchdog] == "1"
}

// Status returns the STATUS text, or "" if absent.
func (r Record) Status() string {
	return r.fields[KeyStatus]
}

// MainPID returns the MAINPID value if present and numeric.
func (r Record) MainPID() (int, bool) {
	return atoiField(r.fields[KeyMainPID])
}

// Errno returns the ERRNO value if present and numeric.
func (r Record) Errno() (int, bool) {
	return atoiField(r.fields[KeyErrno])
}

// BusError returns the BUSERROR value, or "" if absent.
func (r Record) BusError() string {
	return r.fields[KeyBusError]
}

// Extra returns the unrecognized lines preserved from the datagram.
func (r Record) Extra() []string {
	return r.extra
}

// atoiField parses a non-negative decimal value. A hand-rolled loop
// avoids treating strconv's acceptance of "+7" and leading spaces as
// valid protocol input.
func atoiField(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
