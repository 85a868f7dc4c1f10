package system

import (
	"fmt"
	"net"
)

// PrimaryIP returns the IPv4 address of the interface that carries the
// host's default route. The UDP dial does not send any packets; it only
// asks the kernel which source address it would pick.
func PrimaryIP() (string, error) {
	conn, err := net.Dial("udp4", "8.8.8.8:53")
	if err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String(), nil
		}
	}

	// No default route (or offline). Fall back to the first global
	// unicast address on any interface.
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to list interface addresses: %w", err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no suitable IPv4 address found")
}
