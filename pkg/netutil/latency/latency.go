// Package latency flattens probed sites into rows for display and export.
package latency

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/leptonai/edgeprobe/pkg/nettest"
)

// Latency is the measured latency of one site, as seen from the local device.
type Latency struct {
	// Site is the L7 path or "host:port" of the probed endpoint.
	Site string `json:"site"`
	// Kind is the probe kind (CONNECT or PING).
	Kind string `json:"kind"`

	CloudletName string `json:"cloudlet_name,omitempty"`
	AppName      string `json:"app_name,omitempty"`

	// Samples is the number of successful samples currently kept.
	Samples int `json:"samples"`

	Mean   metav1.Duration `json:"mean"`
	StdDev metav1.Duration `json:"std_dev"`

	MeanMilliseconds   float64 `json:"mean_milliseconds"`
	StdDevMilliseconds float64 `json:"std_dev_milliseconds"`
	// LastMilliseconds is -1 when the last probe failed.
	LastMilliseconds float64 `json:"last_milliseconds"`

	LastSampleAt *metav1.Time `json:"last_sample_at,omitempty"`
}

type Latencies []Latency

// FromSites converts sites in the given order.
func FromSites(sites []*nettest.Site) Latencies {
	out := make(Latencies, 0, len(sites))
	for _, s := range sites {
		st := s.Stats()
		l := Latency{
			Site:               s.Name(),
			Kind:               string(s.Kind),
			CloudletName:       s.CloudletName,
			Samples:            st.Size,
			Mean:               metav1.Duration{Duration: msToDuration(st.Mean)},
			StdDev:             metav1.Duration{Duration: msToDuration(st.StdDev)},
			MeanMilliseconds:   st.Mean,
			StdDevMilliseconds: st.StdDev,
			LastMilliseconds:   st.LastLatency,
		}
		if s.AppInst != nil {
			l.AppName = s.AppInst.AppName
		}
		if samples := s.Samples(); len(samples) > 0 {
			ts := metav1.NewTime(samples[len(samples)-1].Timestamp)
			l.LastSampleAt = &ts
		}
		out = append(out, l)
	}
	return out
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func (l Latencies) RenderTable(wr io.Writer) {
	table := tablewriter.NewWriter(wr)
	table.SetHeader([]string{"Rank", "Site", "Kind", "Cloudlet", "Samples", "Mean", "StdDev", "Last", "Last Sample"})

	for i, lat := range l {
		last := "failed"
		if lat.LastMilliseconds >= 0 {
			last = msToDuration(lat.LastMilliseconds).Round(time.Microsecond).String()
		}
		captured := "never"
		if lat.LastSampleAt != nil {
			captured = humanize.Time(lat.LastSampleAt.Time)
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			lat.Site,
			lat.Kind,
			lat.CloudletName,
			strconv.Itoa(lat.Samples),
			lat.Mean.Duration.Round(time.Microsecond).String(),
			lat.StdDev.Duration.Round(time.Microsecond).String(),
			last,
			captured,
		})
	}

	table.Render()
}

// Closest returns the site with the lowest positive mean among sites
// with samples, and false if there is none.
func (l Latencies) Closest() (Latency, bool) {
	var (
		closest Latency
		found   bool
	)
	for _, lat := range l {
		if lat.Samples == 0 || lat.MeanMilliseconds <= 0 {
			continue
		}
		if !found || lat.MeanMilliseconds < closest.MeanMilliseconds {
			closest, found = lat, true
		}
	}
	return closest, found
}
