package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HerbHall/hostprobe/internal/collect"
	"github.com/HerbHall/hostprobe/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func sampleReport() *report.Report {
	return &report.Report{
		ID:        "3f1c9a52-7d4e-4b8a-9a57-0c2d5e6f7a81",
		Timestamp: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Status:    report.StatusComplete,
		Subnet:    "192.168.1",
		SystemInfo: collect.NewCollectionMap(
			collect.Entry{Label: "Hostname", Output: "WS-042"},
			collect.Entry{Label: "Admin Group", Output: "Administrator\r\nDOMAIN\\Domain Admins"},
		),
		NetworkInfo: collect.NewCollectionMap(
			collect.Entry{Label: "ARP Cache", Output: "Interface: 192.168.1.20 --- 0x5"},
		),
		ActiveHosts: []string{"192.168.1.1", "192.168.1.20"},
	}
}

func TestWriteJSON_CreatesDirectoryAndIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases", "0042", "results.json")

	res, err := WriteJSON(path, sampleReport(), false)
	require.NoError(t, err)
	assert.Empty(t, res.DigestPath)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, len(data))
	assert.True(t, strings.HasPrefix(string(data), "{\n    \"id\""), "four-space indent")

	doc := gjson.ParseBytes(data)
	assert.Equal(t, "WS-042", doc.Get("system_info.Hostname").String())
	assert.Equal(t, `Administrator`+"\r\n"+`DOMAIN\Domain Admins`, doc.Get("system_info.Admin Group").String())
	assert.Equal(t, int64(2), doc.Get("active_hosts.#").Int())
	assert.Equal(t, "192.168.1.20", doc.Get("active_hosts.1").String())

	_, err = os.Stat(path + DigestExt)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteJSON_DigestSidecarVerifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	res, err := WriteJSON(path, sampleReport(), true)
	require.NoError(t, err)
	require.Equal(t, path+DigestExt, res.DigestPath)
	assert.Len(t, res.Digest, 64)

	side, err := os.ReadFile(res.DigestPath)
	require.NoError(t, err)
	assert.Equal(t, res.Digest+"  results.json\n", string(side))

	require.NoError(t, Verify(path))

	require.NoError(t, os.WriteFile(path, []byte(`{"tampered":true}`), 0o600))
	assert.ErrorIs(t, Verify(path), ErrDigestMismatch)
}

func TestWriteJSON_EmptyMapsAndHosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	r := &report.Report{ID: "x", Status: report.StatusPartial, ActiveHosts: []string{}}

	_, err := WriteJSON(path, r, false)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := gjson.ParseBytes(data)
	assert.True(t, doc.Get("system_info").IsObject())
	assert.True(t, doc.Get("active_hosts").IsArray())
	assert.False(t, doc.Get("subnet").Exists())
}

func TestWriteJSON_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := WriteJSON(filepath.Join(blocker, "results.json"), sampleReport(), true)
	assert.Error(t, err)
}

func TestDigest_Stable(t *testing.T) {
	assert.Equal(t, Digest([]byte("evidence")), Digest([]byte("evidence")))
	assert.NotEqual(t, Digest([]byte("evidence")), Digest([]byte("evidence ")))
}
