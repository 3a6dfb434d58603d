// Package interfaces implements the "interfaces" command.
package interfaces

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	"github.com/leptonai/edgeprobe/pkg/netutil"
)

func Command(cliContext *cli.Context) error {
	cfg, err := cmdcommon.Setup(cliContext)
	if err != nil {
		return err
	}

	addrs, err := netutil.GetInterfaceAddrs(
		netutil.WithPrefixesToSkip("lo", "docker", "veth", "br-"),
	)
	if err != nil {
		return err
	}
	addrs.RenderTable(os.Stdout, cfg.Interfaces)

	for _, nt := range []netutil.NetworkType{netutil.NetworkTypeCellular, netutil.NetworkTypeWifi} {
		pattern, err := cfg.Interfaces.Pattern(nt)
		if err != nil {
			return err
		}
		addr, err := netutil.ResolveLocalAddr(pattern)
		if err != nil {
			fmt.Printf("%s %s: %v\n", cmdcommon.WarningSign, nt, err)
			continue
		}
		fmt.Printf("%s %s probes bind to %s\n", cmdcommon.CheckMark, nt, addr)
	}
	return nil
}
