// Package command wires the edgeprobe commands into a cli.App.
package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli"

	cmdcommon "github.com/leptonai/edgeprobe/cmd/edgeprobe/common"
	cmdevents "github.com/leptonai/edgeprobe/cmd/edgeprobe/events"
	cmdinterfaces "github.com/leptonai/edgeprobe/cmd/edgeprobe/interfaces"
	cmdmonitor "github.com/leptonai/edgeprobe/cmd/edgeprobe/monitor"
	cmdselect "github.com/leptonai/edgeprobe/cmd/edgeprobe/select-site"
	cmdstatus "github.com/leptonai/edgeprobe/cmd/edgeprobe/status"
	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/version"
)

const usage = `
# to pick the edge site with the lowest latency from a candidate file
edgeprobe select --app-inst-list candidates.yaml

# to keep measuring the candidates and serve the ranking
edgeprobe monitor --app-inst-list candidates.yaml --listen-address 127.0.0.1:15140
`

func App() *cli.App {
	app := cli.NewApp()

	app.Name = "edgeprobe"
	app.Version = version.Version
	app.Usage = usage
	app.Description = "edge site latency probing and selection"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "log-level,l",
			Usage: "set the logging level [debug, info, warn, error]",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "set the log file path (set empty to stderr); stream traffic is audited next to it",
		},
		cli.StringFlag{
			Name:  "config,c",
			Usage: "config file (default: ~/.edgeprobe/edgeprobe.yaml if present)",
		},
	}

	netTestFlags := []cli.Flag{
		cli.IntFlag{
			Name:  "test-port",
			Usage: "only probe app ports that include this port (0 for the first usable port)",
		},
		cli.BoolFlag{
			Name:  "can-ping",
			Usage: "allow ICMP echo probes, e.g. for UDP-only app instances",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "select",
			Usage: "probe the candidate sites and print the one with the lowest latency",
			UsageText: `# candidates from a file
edgeprobe select --app-inst-list candidates.yaml

# candidates from discovery
edgeprobe select --discovery-endpoint https://discovery.example.com --org-name acme --app-name game --app-vers 1.0 --latitude 52.52 --longitude 13.40
`,
			Action: cmdselect.Command,
			Flags: append(append([]cli.Flag{
				cli.IntFlag{
					Name:  "num-samples",
					Usage: "number of probe rounds (0 for the config value)",
				},
				cli.DurationFlag{
					Name:  "timeout",
					Usage: "overall timeout",
					Value: 2 * time.Minute,
				},
				cli.StringFlag{
					Name:  "output,o",
					Usage: "selection output format [json, yaml]",
					Value: "json",
				},
			}, netTestFlags...), cmdcommon.CandidateFlags...),
		},
		{
			Name:   "monitor",
			Usage:  "continuously probe the candidate sites",
			Action: cmdmonitor.Command,
			Flags: append(append([]cli.Flag{
				cli.DurationFlag{
					Name:  "interval",
					Usage: "time between probe rounds (0 for the config value)",
				},
				cli.IntFlag{
					Name:  "max-failures",
					Usage: "stop probing a site after this many consecutive failures (0 for the config value)",
				},
				cli.StringFlag{
					Name:  "listen-address",
					Usage: "serve the ranking, health and metrics on this address",
				},
				cli.BoolFlag{
					Name:  "post-latency",
					Usage: "open an edge event stream to the best site and post its latency after every round",
				},
				cli.StringFlag{
					Name:  "session-cookie",
					Usage: "session cookie for the edge event stream (default: from discovery)",
				},
			}, netTestFlags...), cmdcommon.CandidateFlags...),
		},
		{
			Name:  "events",
			Usage: "open an edge event stream and print the server events",
			UsageText: `# stream to a known endpoint
edgeprobe events --host edge.example.com --port 443 --session-cookie <cookie> --edge-events-cookie <cookie>

# select a site first, then stream and follow cloudlet updates
edgeprobe events --app-inst-list candidates.yaml --session-cookie <cookie> --follow
`,
			Action: cmdevents.Command,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "host",
					Usage: "edge event service host (default: the selected site)",
				},
				cli.IntFlag{
					Name:  "port",
					Usage: "edge event service port (0 for the config value)",
				},
				cli.StringFlag{
					Name:  "session-cookie",
					Usage: "session cookie from client registration",
				},
				cli.StringFlag{
					Name:  "edge-events-cookie",
					Usage: "edge events cookie from site selection",
				},
				cli.StringFlag{
					Name:  "network-type",
					Usage: "data network type reported in the device info",
				},
				cli.BoolFlag{
					Name:  "follow",
					Usage: "reconnect to the new cloudlet on cloudlet updates",
				},
				cli.BoolFlag{
					Name:  "reconnect",
					Usage: "reopen the stream when the server closes it",
				},
			}, cmdcommon.CandidateFlags...),
		},
		{
			Name:   "status",
			Usage:  "print the ranking of a running monitor",
			Action: cmdstatus.Command,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "address",
					Usage: "status address of the monitor (default: status_address in the config)",
				},
				cli.DurationFlag{
					Name:  "timeout",
					Usage: "request timeout",
					Value: 30 * time.Second,
				},
			},
		},
		{
			Name:   "interfaces",
			Usage:  "list the local interfaces and the network type they match",
			Action: cmdinterfaces.Command,
		},
		{
			Name:   "config",
			Usage:  "print the default config, or write it with --write",
			Action: configCommand,
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "write",
					Usage: "write the default config to ~/.edgeprobe/edgeprobe.yaml",
				},
			},
		},
		{
			Name:  "version",
			Usage: "print the version",
			Action: func(cliContext *cli.Context) error {
				fmt.Println(version.String())
				return nil
			},
		},
	}

	return app
}

func configCommand(cliContext *cli.Context) error {
	cfg, err := config.DefaultConfig()
	if err != nil {
		return err
	}

	if !cliContext.Bool("write") {
		b, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Print(string(b))
		return nil
	}

	f, err := config.DefaultConfigFile()
	if err != nil {
		return err
	}
	if err := cfg.Write(f); err != nil {
		return err
	}
	fmt.Printf("%s wrote %s\n", cmdcommon.CheckMark, f)
	return nil
}
