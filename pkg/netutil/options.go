package netutil

import "net"

type Op struct {
	prefixesToSkip map[string]any
	suffixesToSkip map[string]any

	listFunc func() ([]ifaceEntry, error)
}

type OpOption func(*Op)

func (op *Op) applyOpts(opts []OpOption) {
	for _, opt := range opts {
		opt(op)
	}
	if op.listFunc == nil {
		op.listFunc = listSystemInterfaces
	}
}

// WithPrefixesToSkip ignores interfaces whose names start with any prefix.
func WithPrefixesToSkip(prefixes ...string) OpOption {
	return func(op *Op) {
		if op.prefixesToSkip == nil {
			op.prefixesToSkip = make(map[string]any)
		}
		for _, pfx := range prefixes {
			op.prefixesToSkip[pfx] = nil
		}
	}
}

// WithSuffixesToSkip ignores interfaces whose names end with any suffix.
func WithSuffixesToSkip(suffixes ...string) OpOption {
	return func(op *Op) {
		if op.suffixesToSkip == nil {
			op.suffixesToSkip = make(map[string]any)
		}
		for _, sfx := range suffixes {
			op.suffixesToSkip[sfx] = nil
		}
	}
}

// ifaceEntry is the subset of net.Interface used for address resolution.
type ifaceEntry struct {
	Name  string
	Flags net.Flags
	Addrs []net.Addr
}

func withListFunc(f func() ([]ifaceEntry, error)) OpOption {
	return func(op *Op) {
		op.listFunc = f
	}
}

func listSystemInterfaces() ([]ifaceEntry, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	entries := make([]ifaceEntry, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		entries = append(entries, ifaceEntry{Name: iface.Name, Flags: iface.Flags, Addrs: addrs})
	}
	return entries, nil
}
