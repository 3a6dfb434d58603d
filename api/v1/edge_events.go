package v1

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sample is one latency observation in milliseconds.
// A negative value marks a failed probe.
type Sample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Statistics summarizes a set of latency samples.
type Statistics struct {
	Avg        float64   `json:"avg"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
	StdDev     float64   `json:"std_dev"`
	Variance   float64   `json:"variance"`
	NumSamples int       `json:"num_samples"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewStatistics summarizes the non-negative samples.
func NewStatistics(samples []Sample) Statistics {
	vals := make([]float64, 0, len(samples))
	var latest time.Time
	for _, s := range samples {
		if s.Value < 0 {
			continue
		}
		vals = append(vals, s.Value)
		if s.Timestamp.After(latest) {
			latest = s.Timestamp
		}
	}
	if len(vals) == 0 {
		return Statistics{}
	}

	st := Statistics{
		Min:        floats.Min(vals),
		Max:        floats.Max(vals),
		NumSamples: len(vals),
		Timestamp:  latest,
	}
	if len(vals) == 1 {
		st.Avg = vals[0]
		return st
	}
	st.Avg, st.StdDev = stat.MeanStdDev(vals, nil)
	st.Variance = st.StdDev * st.StdDev
	return st
}

// ClientEventType is the type of a message sent by the client.
type ClientEventType string

const (
	ClientEventInitConnection      ClientEventType = "EVENT_INIT_CONNECTION"
	ClientEventTerminateConnection ClientEventType = "EVENT_TERMINATE_CONNECTION"
	ClientEventLatencySamples      ClientEventType = "EVENT_LATENCY_SAMPLES"
	ClientEventLocationUpdate      ClientEventType = "EVENT_LOCATION_UPDATE"
	ClientEventCustomEvent         ClientEventType = "EVENT_CUSTOM_EVENT"
)

// ClientEdgeEvent is a message from the client to the edge event service.
type ClientEdgeEvent struct {
	EventType        ClientEventType `json:"event_type"`
	SessionCookie    string          `json:"session_cookie,omitempty"`
	EdgeEventsCookie string          `json:"edge_events_cookie,omitempty"`
	GpsLocation      *Loc            `json:"gps_location,omitempty"`
	Samples          []Sample        `json:"samples,omitempty"`
	DeviceInfo       *DeviceInfo     `json:"device_info,omitempty"`
	CustomEvent      string          `json:"custom_event,omitempty"`
}

// ServerEventType is the type of a message pushed by the server.
type ServerEventType string

const (
	ServerEventInitConnection      ServerEventType = "EVENT_INIT_CONNECTION"
	ServerEventLatencyRequest      ServerEventType = "EVENT_LATENCY_REQUEST"
	ServerEventLatencyProcessed    ServerEventType = "EVENT_LATENCY_PROCESSED"
	ServerEventCloudletState       ServerEventType = "EVENT_CLOUDLET_STATE"
	ServerEventCloudletMaintenance ServerEventType = "EVENT_CLOUDLET_MAINTENANCE"
	ServerEventAppInstHealth       ServerEventType = "EVENT_APPINST_HEALTH"
	ServerEventCloudletUpdate      ServerEventType = "EVENT_CLOUDLET_UPDATE"
	ServerEventError               ServerEventType = "EVENT_ERROR"
)

type CloudletState string

const (
	CloudletStateUnknown    CloudletState = "CLOUDLET_STATE_UNKNOWN"
	CloudletStateReady      CloudletState = "CLOUDLET_STATE_READY"
	CloudletStateOffline    CloudletState = "CLOUDLET_STATE_OFFLINE"
	CloudletStateNotPresent CloudletState = "CLOUDLET_STATE_NOT_PRESENT"
)

type MaintenanceState string

const (
	MaintenanceStateNormal           MaintenanceState = "NORMAL_OPERATION"
	MaintenanceStateUnderMaintenance MaintenanceState = "UNDER_MAINTENANCE"
)

type HealthCheck string

const (
	HealthCheckUnknown           HealthCheck = "HEALTH_CHECK_UNKNOWN"
	HealthCheckOK                HealthCheck = "HEALTH_CHECK_OK"
	HealthCheckFailRootLBOffline HealthCheck = "HEALTH_CHECK_FAIL_ROOTLB_OFFLINE"
	HealthCheckFailServerFail    HealthCheck = "HEALTH_CHECK_FAIL_SERVER_FAIL"
)

// ServerEdgeEvent is a message pushed by the edge event service.
type ServerEdgeEvent struct {
	EventType        ServerEventType    `json:"event_type"`
	CloudletState    CloudletState      `json:"cloudlet_state,omitempty"`
	MaintenanceState MaintenanceState   `json:"maintenance_state,omitempty"`
	HealthCheck      HealthCheck        `json:"health_check,omitempty"`
	Statistics       *Statistics        `json:"statistics,omitempty"`
	NewCloudlet      *FindCloudletReply `json:"new_cloudlet,omitempty"`
	ErrorMsg         string             `json:"error_msg,omitempty"`
}
