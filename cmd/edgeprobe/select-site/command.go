// Package selectsite implements the "select" command.
package selectsite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"
	"sigs.k8s.io/yaml"

	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	"github.com/leptonai/edgeprobe/pkg/log"
	"github.com/leptonai/edgeprobe/pkg/netutil/latency"
	"github.com/leptonai/edgeprobe/pkg/perfmode"
)

func Command(cliContext *cli.Context) error {
	cfg, err := cmdcommon.Setup(cliContext)
	if err != nil {
		return err
	}
	log.Logger.Debugw("starting select command")

	if n := cliContext.Int("num-samples"); n > 0 {
		cfg.NetTest.NumSamples = n
	}
	if p := cliContext.Int("test-port"); p > 0 {
		cfg.NetTest.TestPort = p
	}
	if cliContext.Bool("can-ping") {
		cfg.NetTest.CanPing = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	timeout := cliContext.Duration("timeout")
	rootCtx, rootCancel := context.WithTimeout(context.Background(), timeout)
	defer rootCancel()

	cands, err := cmdcommon.LoadCandidates(rootCtx, cliContext, cfg)
	if err != nil {
		return err
	}

	sel, err := cmdcommon.NewSelector(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	best, ranked, err := sel.Evaluate(rootCtx, cands.Reply, cfg.NetTest.TestPort, cfg.NetTest.NumSamples)
	if len(ranked) > 0 {
		latency.FromSites(ranked).RenderTable(os.Stdout)
	}
	if err != nil {
		fmt.Printf("%s failed to select an edge site (%v)\n", cmdcommon.WarningSign, cmdcommon.Since(start))
		return err
	}
	fmt.Printf("%s selected %s on %s (%.3f ms mean, %v)\n", cmdcommon.CheckMark, best.Name(), best.CloudletName, best.Mean(), cmdcommon.Since(start))

	reply := perfmode.NewFindCloudletReply(best)
	var b []byte
	switch cliContext.String("output") {
	case "yaml":
		b, err = yaml.Marshal(reply)
	default:
		b, err = json.MarshalIndent(reply, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
