// Package netutil resolves the local address probes should originate from.
package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"regexp"
	"runtime"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// ErrNoMatchingInterface is returned when no up interface matches a pattern.
var ErrNoMatchingInterface = errors.New("no matching network interface")

// NetworkType is the kind of network a local interface belongs to.
type NetworkType string

const (
	NetworkTypeAny      NetworkType = ""
	NetworkTypeCellular NetworkType = "cellular"
	NetworkTypeWifi     NetworkType = "wifi"
)

// Patterns holds the interface-name regular expressions per network type.
// It is resolved once at startup and passed by value.
type Patterns struct {
	CellularPattern string `json:"cellular_pattern"`
	WifiPattern     string `json:"wifi_pattern"`
}

// DefaultPatterns returns the interface naming conventions of the running OS.
func DefaultPatterns() Patterns {
	switch runtime.GOOS {
	case "darwin":
		return Patterns{CellularPattern: `^pdp_ip\d+$`, WifiPattern: `^en0$`}
	case "windows":
		return Patterns{CellularPattern: `(?i)cellular|mobile`, WifiPattern: `(?i)wi-?fi|wireless`}
	default:
		return Patterns{CellularPattern: `^(rmnet|wwan|ccmni)\w*$`, WifiPattern: `^(wlan|wlp|wl)\w*$`}
	}
}

// Pattern returns the pattern for the network type.
func (p Patterns) Pattern(nt NetworkType) (string, error) {
	switch nt {
	case NetworkTypeCellular:
		return p.CellularPattern, nil
	case NetworkTypeWifi:
		return p.WifiPattern, nil
	case NetworkTypeAny:
		return "", nil
	default:
		return "", fmt.Errorf("unknown network type %q", nt)
	}
}

// Validate checks that both patterns compile.
func (p Patterns) Validate() error {
	for name, pat := range map[string]string{"cellular": p.CellularPattern, "wifi": p.WifiPattern} {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("invalid %s interface pattern %q: %w", name, pat, err)
		}
	}
	return nil
}

// InterfaceAddrs is a slice of InterfaceAddr.
type InterfaceAddrs []InterfaceAddr

// RenderTable renders the InterfaceAddrs as a table with the network type
// each interface matches under p.
func (addrs InterfaceAddrs) RenderTable(wr io.Writer, p Patterns) {
	cellular, _ := regexp.Compile(p.CellularPattern)
	wifi, _ := regexp.Compile(p.WifiPattern)

	table := tablewriter.NewWriter(wr)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetHeader([]string{"Interface Name", "Address", "Network Type"})
	for _, addr := range addrs {
		nt := "-"
		switch {
		case cellular != nil && p.CellularPattern != "" && cellular.MatchString(addr.Name):
			nt = string(NetworkTypeCellular)
		case wifi != nil && p.WifiPattern != "" && wifi.MatchString(addr.Name):
			nt = string(NetworkTypeWifi)
		}
		table.Append([]string{addr.Name, addr.Addr.String(), nt})
	}
	table.Render()
}

// InterfaceAddr is a network interface and the address probes would bind to.
type InterfaceAddr struct {
	Name string
	Addr netip.Addr
}

// GetInterfaceAddrs lists one usable address per up, non-loopback interface,
// preferring IPv4 and falling back to a global or link-local IPv6 address.
func GetInterfaceAddrs(opts ...OpOption) (InterfaceAddrs, error) {
	op := &Op{}
	op.applyOpts(opts)

	ifaces, err := op.listFunc()
	if err != nil {
		return nil, fmt.Errorf("error getting network interfaces: %w", err)
	}

	var out InterfaceAddrs
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if op.skip(iface.Name) {
			continue
		}
		if addr, ok := pickAddr(iface.Addrs); ok {
			out = append(out, InterfaceAddr{Name: iface.Name, Addr: addr})
		}
	}
	return out, nil
}

func (op *Op) skip(name string) bool {
	for pfx := range op.prefixesToSkip {
		if strings.HasPrefix(name, pfx) {
			return true
		}
	}
	for sfx := range op.suffixesToSkip {
		if strings.HasSuffix(name, sfx) {
			return true
		}
	}
	return false
}

func pickAddr(addrs []net.Addr) (netip.Addr, bool) {
	var v6 netip.Addr
	for _, a := range addrs {
		ip, ok := convertNetAddr(a)
		if !ok || !ip.IsValid() || ip.IsLoopback() || ip.IsUnspecified() {
			continue
		}
		if ip.Is4() {
			return ip, true
		}
		if !v6.IsValid() && (ip.IsGlobalUnicast() || ip.IsLinkLocalUnicast()) {
			v6 = ip
		}
	}
	return v6, v6.IsValid()
}

// ResolveLocalAddr returns the address of the first interface whose name
// matches pattern. An empty pattern returns the zero Addr, meaning the
// system picks the source address.
func ResolveLocalAddr(pattern string, opts ...OpOption) (netip.Addr, error) {
	if pattern == "" {
		return netip.Addr{}, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid interface pattern %q: %w", pattern, err)
	}

	addrs, err := GetInterfaceAddrs(opts...)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, a := range addrs {
		if re.MatchString(a.Name) {
			return a.Addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %q", ErrNoMatchingInterface, pattern)
}

// convertNetAddr converts a standard net.Addr to netip.Addr.
func convertNetAddr(addr net.Addr) (netip.Addr, bool) {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return netip.Addr{}, false
	}

	ipAddr, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return ipAddr.Unmap(), true
}
