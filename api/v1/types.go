// Package v1 defines the wire types shared by the discovery client,
// the performance-mode selector and the edge event stream.
package v1

import (
	"fmt"
	"strconv"
	"time"
)

// LProto is the layer 4/7 protocol an application port is exposed on.
type LProto string

const (
	LProtoUnknown LProto = "L_PROTO_UNKNOWN"
	LProtoTCP     LProto = "L_PROTO_TCP"
	LProtoUDP     LProto = "L_PROTO_UDP"
	LProtoHTTP    LProto = "L_PROTO_HTTP"
)

// AppPort describes one port of an application instance.
// A non-zero EndPort declares the public port range [PublicPort, EndPort].
type AppPort struct {
	Proto        LProto `json:"proto"`
	InternalPort int32  `json:"internal_port"`
	PublicPort   int32  `json:"public_port"`
	EndPort      int32  `json:"end_port,omitempty"`
	FqdnPrefix   string `json:"fqdn_prefix,omitempty"`
	TLS          bool   `json:"tls,omitempty"`
}

// InRange returns true if port equals the public port, or falls within
// [PublicPort, EndPort] when an end port is declared.
func (p AppPort) InRange(port int) bool {
	if port <= 0 {
		return false
	}
	if int32(port) == p.PublicPort {
		return true
	}
	return p.EndPort != 0 && p.PublicPort <= int32(port) && int32(port) <= p.EndPort
}

// Host joins the port's FQDN prefix with the instance FQDN.
func (p AppPort) Host(fqdn string) string {
	return p.FqdnPrefix + fqdn
}

// Loc is a GPS location.
type Loc struct {
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	HorizontalAccuracy float64    `json:"horizontal_accuracy,omitempty"`
	Altitude           float64    `json:"altitude,omitempty"`
	Timestamp          *time.Time `json:"timestamp,omitempty"`
}

func (l Loc) String() string {
	return strconv.FormatFloat(l.Latitude, 'f', 4, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', 4, 64)
}

// AppInstance is one deployment of an application on a cloudlet.
type AppInstance struct {
	AppName          string    `json:"app_name"`
	AppVers          string    `json:"app_vers"`
	OrgName          string    `json:"org_name"`
	Fqdn             string    `json:"fqdn"`
	Ports            []AppPort `json:"ports"`
	EdgeEventsCookie string    `json:"edge_events_cookie,omitempty"`
}

// CloudletLocation is a candidate edge location and the instances it hosts.
type CloudletLocation struct {
	CarrierName  string        `json:"carrier_name"`
	CloudletName string        `json:"cloudlet_name"`
	GpsLocation  Loc           `json:"gps_location"`
	Distance     float64       `json:"distance,omitempty"`
	AppInstances []AppInstance `json:"appinstances"`
}

type AIStatus string

const (
	AIStatusUndefined AIStatus = "AI_UNDEFINED"
	AIStatusSuccess   AIStatus = "AI_SUCCESS"
	AIStatusFail      AIStatus = "AI_FAIL"
)

// AppInstListRequest asks discovery for the candidate cloudlets near a location.
type AppInstListRequest struct {
	SessionCookie string `json:"session_cookie"`
	CarrierName   string `json:"carrier_name"`
	GpsLocation   Loc    `json:"gps_location"`
	Limit         int    `json:"limit,omitempty"`
}

// CacheKey identifies equivalent requests for response caching.
func (r *AppInstListRequest) CacheKey() string {
	return fmt.Sprintf("%s|%s|%s|%d", r.SessionCookie, r.CarrierName, r.GpsLocation, r.Limit)
}

type AppInstListReply struct {
	Status    AIStatus           `json:"status"`
	Cloudlets []CloudletLocation `json:"cloudlets"`
}

type FindStatus string

const (
	FindStatusUnknown  FindStatus = "FIND_UNKNOWN"
	FindStatusFound    FindStatus = "FIND_FOUND"
	FindStatusNotFound FindStatus = "FIND_NOTFOUND"
)

// FindCloudletReply is the selected edge endpoint.
type FindCloudletReply struct {
	Status           FindStatus `json:"status"`
	Fqdn             string     `json:"fqdn"`
	Ports            []AppPort  `json:"ports"`
	CloudletLocation Loc        `json:"cloudlet_location"`
	CloudletName     string     `json:"cloudlet_name,omitempty"`
	AppName          string     `json:"app_name,omitempty"`
	EdgeEventsCookie string     `json:"edge_events_cookie,omitempty"`
}

type RegisterClientRequest struct {
	OrgName      string `json:"org_name"`
	AppName      string `json:"app_name"`
	AppVers      string `json:"app_vers"`
	UniqueID     string `json:"unique_id,omitempty"`
	UniqueIDType string `json:"unique_id_type,omitempty"`
}

type RStatus string

const (
	RStatusUndefined RStatus = "RS_UNDEFINED"
	RStatusSuccess   RStatus = "RS_SUCCESS"
	RStatusFail      RStatus = "RS_FAIL"
)

type RegisterClientReply struct {
	Status        RStatus `json:"status"`
	SessionCookie string  `json:"session_cookie"`
	UniqueID      string  `json:"unique_id,omitempty"`
	UniqueIDType  string  `json:"unique_id_type,omitempty"`
}

// DeviceInfo is optional metadata sent when an edge event stream opens.
type DeviceInfo struct {
	DeviceOS        string `json:"device_os,omitempty"`
	DeviceModel     string `json:"device_model,omitempty"`
	DataNetworkType string `json:"data_network_type,omitempty"`
	CarrierName     string `json:"carrier_name,omitempty"`
	SignalStrength  int32  `json:"signal_strength,omitempty"`
}
