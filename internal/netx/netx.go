// Package netx holds the raw socket plumbing for both feed endpoints: the
// publisher's fd-based multicast sender and recovery listener (driven by the
// epoll reactor) and the subscriber's net-based multicast join.
package netx

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// NewMulticastSender creates a UDP socket for broadcasting to a multicast
// group and returns the fd together with the destination address.
func NewMulticastSender(group string, port int) (int, *unix.SockaddrInet4, error) {
	ip := net.ParseIP(group)
	if ip == nil || ip.To4() == nil {
		return -1, nil, fmt.Errorf("invalid multicast group %q", group)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, nil, fmt.Errorf("failed to create UDP socket: %w", err)
	}

	// TTL 1 keeps the broadcast on the local subnet.
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_MULTICAST_TTL, 1); err != nil {
		unix.Close(fd)
		return -1, nil, fmt.Errorf("failed to set IP_MULTICAST_TTL: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port}
	copy(addr.Addr[:], ip.To4())

	return fd, addr, nil
}

// NewTCPListener creates a nonblocking TCP listener on the given port,
// suitable for registration with the event loop.
func NewTCPListener(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("failed to create TCP socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("failed to set SO_REUSEADDR: %w", err)
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("failed to bind TCP socket: %w", err)
	}

	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("failed to listen on TCP socket: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("failed to set listener nonblocking: %w", err)
	}

	return fd, nil
}

// JoinMulticast joins the multicast group at addr ("ip:port") and returns a
// bound UDP connection for blocking receives.
func JoinMulticast(addr string) (*net.UDPConn, error) {
	gaddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve multicast address: %w", err)
	}

	conn, err := net.ListenMulticastUDP("udp4", nil, gaddr)
	if err != nil {
		return nil, fmt.Errorf("failed to join multicast group: %w", err)
	}

	return conn, nil
}
