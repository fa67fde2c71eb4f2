package crawl

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var privateCIDRs []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",  // CGNAT
		"169.254.0.0/16", // link-local
		"fc00::/7",       // IPv6 ULA
	} {
		_, parsed, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad CIDR %q: %v", cidr, err))
		}
		privateCIDRs = append(privateCIDRs, parsed)
	}
}

// checkScheme rejects anything that is not plain http(s) with a host.
func checkScheme(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("missing hostname in url")
	}
	return parsed, nil
}

// validateTarget is the fast-path check run before a fetch. The dialer
// returned by newGuardedTransport is authoritative.
func validateTarget(ctx context.Context, rawURL string) (*url.URL, error) {
	parsed, err := checkScheme(rawURL)
	if err != nil {
		return nil, err
	}
	host := parsed.Hostname()
	ips, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed for %s: %w", host, err)
	}
	for _, ipStr := range ips {
		if ip := net.ParseIP(ipStr); ip != nil && isPrivateIP(ip) {
			return nil, fmt.Errorf("%s resolves to private address %s", host, ipStr)
		}
	}
	return parsed, nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// newGuardedTransport pins each connection to a vetted public address so a
// DNS answer cannot change between the check and the dial.
func newGuardedTransport() *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("guarded dial: invalid address %q: %w", addr, err)
			}
			ips, err := net.DefaultResolver.LookupHost(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("guarded dial: dns lookup %s: %w", host, err)
			}
			for _, ipStr := range ips {
				if ip := net.ParseIP(ipStr); ip != nil && isPrivateIP(ip) {
					return nil, fmt.Errorf("guarded dial: %s resolves to private address %s", host, ipStr)
				}
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		},
		MaxIdleConns:        50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}
