package util

import "net"

// LocalIP returns the preferred outbound IP of this machine, or "" when it
// cannot be determined. The dial never sends traffic; it only selects a
// route.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
