package platform

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	assert.NoError(t, Check("windows"))
	assert.NoError(t, Check("Windows"))

	for _, goos := range []string{"linux", "darwin", "freebsd", ""} {
		err := Check(goos)
		require.Error(t, err, goos)
		assert.ErrorIs(t, err, ErrUnsupportedOS)
	}
}

func TestDetect_ReportsRunningOS(t *testing.T) {
	info, err := Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runtime.GOOS, info.OS)
	assert.NotEmpty(t, info.Hostname)
}
