// Package status implements the "status" command.
package status

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	clientv1 "github.com/leptonai/edgeprobe/client/v1"
	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	"github.com/leptonai/edgeprobe/pkg/log"
)

func Command(cliContext *cli.Context) error {
	cfg, err := cmdcommon.Setup(cliContext)
	if err != nil {
		return err
	}
	log.Logger.Debugw("starting status command")

	addr := cliContext.String("address")
	if addr == "" {
		addr = cfg.StatusAddress
	}
	if addr == "" {
		return fmt.Errorf("no status address, set --address or status_address in the config")
	}

	rootCtx, rootCancel := context.WithTimeout(context.Background(), cliContext.Duration("timeout"))
	defer rootCancel()

	if err := clientv1.CheckHealthz(rootCtx, addr); err != nil {
		fmt.Printf("%s monitor at %s is not healthy (%v)\n", cmdcommon.WarningSign, addr, err)
		return err
	}
	fmt.Printf("%s monitor at %s is healthy\n", cmdcommon.CheckMark, addr)

	sites, err := clientv1.GetSites(rootCtx, addr)
	if err != nil {
		return err
	}
	if len(sites) == 0 {
		fmt.Printf("%s no sites under test\n", cmdcommon.WarningSign)
		return nil
	}
	sites.RenderTable(os.Stdout)

	if closest, ok := sites.Closest(); ok {
		fmt.Printf("%s closest site %s (%s) at %v\n", cmdcommon.CheckMark, closest.Site, closest.CloudletName, closest.Mean.Duration.Round(time.Microsecond))
	}
	return nil
}
