package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"sigs.k8s.io/yaml"

	"github.com/leptonai/edgeprobe/pkg/netutil/latency"
)

const (
	RequestHeaderContentType = "Content-Type"
	RequestHeaderJSONIndent  = "json-indent"
	RequestHeaderYAML        = "application/yaml"
)

type Healthz struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

var DefaultHealthz = Healthz{
	Status:  "ok",
	Version: "v1",
}

func createHealthzHandler() func(*gin.Context) {
	return func(c *gin.Context) {
		respond(c, DefaultHealthz)
	}
}

// createSitesHandler serves the ranked sites, best first.
func createSitesHandler(src SitesSource) func(*gin.Context) {
	return func(c *gin.Context) {
		respond(c, latency.FromSites(src.Ranked()))
	}
}

// respond writes v as YAML when the request content type asks for it,
// otherwise as (optionally indented) JSON.
func respond(c *gin.Context, v any) {
	if c.GetHeader(RequestHeaderContentType) == RequestHeaderYAML {
		b, err := yaml.Marshal(v)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "failed to marshal " + err.Error()})
			return
		}
		c.Data(http.StatusOK, RequestHeaderYAML, b)
		return
	}

	if c.GetHeader(RequestHeaderJSONIndent) == "true" {
		c.IndentedJSON(http.StatusOK, v)
		return
	}
	c.JSON(http.StatusOK, v)
}
