package model

// ExitAddress is a Tor exit node address taken from the exit list.
// Values are replaced wholesale on every successful refresh and are
// never patched in place.
type ExitAddress struct {
	// IP is the address as written by the upstream list. It is not validated.
	IP string `json:"ip"`

	// LastSeen is the upstream "last seen" timestamp, kept verbatim.
	LastSeen string `json:"last_seen"`
}

// IPs returns the bare addresses of the given exit addresses, in order.
func IPs(addrs []ExitAddress) []string {
	ips := make([]string, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips
}
