package notify

import (
	"fmt"
	"net"
)

// Send delivers one datagram to the notification socket at path, from a
// fresh socket owned by the calling process. The kernel stamps the
// datagram with this process's credentials, which is exactly what a
// supervisor's sender-identity check validates — never attempt to relay
// another process's credentials instead.
//
// A leading '@' denotes an abstract socket address, the same convention
// systemd uses in NOTIFY_SOCKET (the net package translates it).
func Send(path string, payload []byte) error {
	if path == "" {
		return fmt.Errorf("empty notification socket path")
	}

	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return fmt.Errorf("dial notification socket %s: %w", path, err)
	}
	defer conn.Close()

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("send notification to %s: %w", path, err)
	}
	return nil
}
