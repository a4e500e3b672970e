package report

import (
	"time"

	"github.com/HerbHall/hostprobe/internal/collect"
	"github.com/HerbHall/hostprobe/internal/platform"
)

// Status records whether every phase finished.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// Report is the single result of one run. The aggregator writes each phase
// field exactly once; after Run returns the report must be treated as
// read-only.
type Report struct {
	ID          string                `json:"id"`
	Timestamp   time.Time             `json:"timestamp"`
	Status      Status                `json:"status"`
	Subnet      string                `json:"subnet,omitempty"`
	Host        *platform.HostInfo    `json:"host,omitempty"`
	SystemInfo  collect.CollectionMap `json:"system_info"`
	NetworkInfo collect.CollectionMap `json:"network_info"`
	ActiveHosts []string              `json:"active_hosts"`
}

// Summary holds counts derived from a Report for presentation.
type Summary struct {
	SystemInfoItems  int  `json:"system_info_items"`
	NetworkInfoItems int  `json:"network_info_items"`
	ActiveHosts      int  `json:"active_hosts"`
	SubnetScanned    bool `json:"subnet_scanned"`
}

// Summary derives the presentation counts.
func (r *Report) Summary() Summary {
	return Summary{
		SystemInfoItems:  r.SystemInfo.Len(),
		NetworkInfoItems: r.NetworkInfo.Len(),
		ActiveHosts:      len(r.ActiveHosts),
		SubnetScanned:    r.Subnet != "",
	}
}

// Complete reports whether every phase finished.
func (r *Report) Complete() bool {
	return r.Status == StatusComplete
}
