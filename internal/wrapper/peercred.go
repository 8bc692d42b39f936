package wrapper

import (
	"net"

	"golang.org/x/sys/unix"
)

// Sender credentials on the notification socket are kernel-stamped via
// SO_PASSCRED and arrive as SCM_CREDENTIALS control messages alongside
// each datagram. They cannot be faked by the sender. The wrapper only
// logs them; the real enforcement happens on the host side, where the
// forwarder notifies the supervisor under its own identity.

// enablePassCred turns on SO_PASSCRED for the datagram socket.
func enablePassCred(conn *net.UnixConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PASSCRED, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// credOOBSpace returns the control-message buffer size needed for one
// SCM_CREDENTIALS message.
func credOOBSpace() int {
	return unix.CmsgSpace(unix.SizeofUcred)
}

// parseSenderCreds extracts the sender credentials from the raw
// control-message bytes of one datagram, or nil if none were attached.
func parseSenderCreds(oob []byte) *unix.Ucred {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil
	}
	for i := range msgs {
		if cred, err := unix.ParseUnixCredentials(&msgs[i]); err == nil {
			return cred
		}
	}
	return nil
}
