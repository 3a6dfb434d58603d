package common

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli"

	apiv1 "github.com/leptonai/edgeprobe/api/v1"
	clientv1 "github.com/leptonai/edgeprobe/client/v1"
	"github.com/leptonai/edgeprobe/pkg/config"
	"github.com/leptonai/edgeprobe/pkg/log"
)

var ErrNoCandidateSource = errors.New("either --app-inst-list or a discovery endpoint is required")

// CandidateFlags select where candidate cloudlets come from.
var CandidateFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "app-inst-list",
		Usage: "read candidate cloudlets from a JSON or YAML file instead of discovery",
	},
	cli.StringFlag{
		Name:  "discovery-endpoint",
		Usage: "discovery service endpoint (overrides the config)",
	},
	cli.StringFlag{
		Name:  "org-name",
		Usage: "organization of the application to register",
	},
	cli.StringFlag{
		Name:  "app-name",
		Usage: "application to register",
	},
	cli.StringFlag{
		Name:  "app-vers",
		Usage: "application version to register",
	},
	cli.StringFlag{
		Name:  "carrier",
		Usage: "carrier name (overrides the config)",
	},
	cli.Float64Flag{
		Name:  "latitude",
		Usage: "latitude of the client",
	},
	cli.Float64Flag{
		Name:  "longitude",
		Usage: "longitude of the client",
	},
	cli.IntFlag{
		Name:  "limit",
		Usage: "maximum number of cloudlets to request (0 for server default)",
	},
}

// Candidates is the candidate list together with the session it was
// requested in; SessionCookie is empty for file candidates.
type Candidates struct {
	Reply         *apiv1.AppInstListReply
	SessionCookie string
	Client        *clientv1.Client
	Request       *apiv1.AppInstListRequest
}

// LoadCandidates reads the file given by --app-inst-list or registers with
// discovery and requests the app instance list.
func LoadCandidates(ctx context.Context, cliContext *cli.Context, cfg *config.Config) (*Candidates, error) {
	if f := cliContext.String("app-inst-list"); f != "" {
		reply, err := ReadCandidateFile(f)
		if err != nil {
			return nil, err
		}
		return &Candidates{Reply: reply}, nil
	}

	endpoint := cliContext.String("discovery-endpoint")
	if endpoint == "" {
		endpoint = cfg.Discovery.Endpoint
	}
	if endpoint == "" {
		return nil, ErrNoCandidateSource
	}

	cli, err := clientv1.New(endpoint,
		clientv1.WithTimeout(cfg.Discovery.Timeout.Duration),
		clientv1.WithCacheTTL(cfg.Discovery.CacheTTL.Duration),
		clientv1.WithInsecureSkipVerify(cfg.Discovery.InsecureSkipVerify),
	)
	if err != nil {
		return nil, err
	}

	reg, err := cli.RegisterClient(ctx, &apiv1.RegisterClientRequest{
		OrgName: cliContext.String("org-name"),
		AppName: cliContext.String("app-name"),
		AppVers: cliContext.String("app-vers"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register client: %w", err)
	}
	log.Logger.Debugw("registered client", "endpoint", endpoint)

	carrier := cliContext.String("carrier")
	if carrier == "" {
		carrier = cfg.Discovery.CarrierName
	}
	req := &apiv1.AppInstListRequest{
		SessionCookie: reg.SessionCookie,
		CarrierName:   carrier,
		GpsLocation:   Location(cliContext),
		Limit:         cliContext.Int("limit"),
	}
	reply, err := cli.GetAppInstList(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Candidates{
		Reply:         reply,
		SessionCookie: reg.SessionCookie,
		Client:        cli,
		Request:       req,
	}, nil
}

func ReadCandidateFile(file string) (*apiv1.AppInstListReply, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reply, err := clientv1.ReadAppInstList(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", file, err)
	}
	return reply, nil
}

// Location returns the client location from --latitude and --longitude.
func Location(cliContext *cli.Context) apiv1.Loc {
	return apiv1.Loc{
		Latitude:  cliContext.Float64("latitude"),
		Longitude: cliContext.Float64("longitude"),
	}
}
