package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	origVer, origRev, origTS := Version, Revision, BuildTimestamp
	defer func() { Version, Revision, BuildTimestamp = origVer, origRev, origTS }()

	Version, Revision, BuildTimestamp = "1.2.3", "", ""
	assert.Equal(t, "github.com/leptonai/edgeprobe 1.2.3 "+runtime.Version(), String())

	Revision, BuildTimestamp = "abc123", "2026-01-02"
	assert.Equal(t, "github.com/leptonai/edgeprobe 1.2.3 (abc123) built 2026-01-02 "+runtime.Version(), String())
}
