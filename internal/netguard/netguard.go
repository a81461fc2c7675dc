// Package netguard blocks outbound requests to private or reserved
// destinations. Loopback stays allowed so local test servers work.
package netguard

import (
	"fmt"
	"net"
	"net/url"
)

var reservedCIDRs []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"fc00::/7",
		"fe80::/10",
	} {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		reservedCIDRs = append(reservedCIDRs, network)
	}
}

// IsReservedIP reports whether the address sits in a private, link-local or
// otherwise reserved range. Loopback addresses are not reserved.
func IsReservedIP(ip net.IP) bool {
	if ip.IsLoopback() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, network := range reservedCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// CheckURL resolves the URL's host and rejects it when any resolved address
// is reserved.
func CheckURL(u *url.URL) error {
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("url %q has no host", u.String())
	}
	if ip := net.ParseIP(host); ip != nil {
		if IsReservedIP(ip) {
			return fmt.Errorf("destination %s resolves to a reserved address", host)
		}
		return nil
	}
	addrs, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", host, err)
	}
	for _, a := range addrs {
		if IsReservedIP(a) {
			return fmt.Errorf("destination %s resolves to a reserved address", host)
		}
	}
	return nil
}
