package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "dev (unknown, built unknown)", Info{Version: "dev", GitSHA: "unknown", BuildTime: "unknown"}.String())
}
