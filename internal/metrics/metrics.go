// Package metrics implements the optional text metrics endpoint: a
// plain `GET /` over net/http that renders `fedis_<name> <value>`
// lines from a point-in-time snapshot. This deliberately does not use
// a Prometheus client library — there is no label/registry machinery
// to exercise since every metric name is fixed and unlabeled; see
// DESIGN.md.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// CommandStat is one command's call-count/microseconds pair.
type CommandStat struct {
	Name   string
	Calls  int64
	Micros int64
}

// Snapshot is everything the endpoint renders for one request.
type Snapshot struct {
	ConnectedClients int64
	TotalConnections int64
	TotalCommands    int64
	OpsPerSec        int64

	KeyCount         int64
	ExpiringKeyCount int64
	ApproxMemoryBytes int64

	RewriteCount      int64
	RewriteFailures   int64
	RewriteInProgress bool

	SaveCount      int64
	SaveFailures   int64
	SaveInProgress bool

	Commands []CommandStat
}

// Provider supplies the current snapshot on each scrape.
type Provider interface {
	MetricsSnapshot() Snapshot
}

// Handler serves Snapshot as `fedis_<name> <value>` text.
type Handler struct {
	provider Provider
}

// NewHandler builds an http.Handler backed by provider.
func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snap := h.provider.MetricsSnapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	var b strings.Builder
	writeGauge(&b, "fedis_connected_clients", snap.ConnectedClients)
	writeGauge(&b, "fedis_total_connections", snap.TotalConnections)
	writeGauge(&b, "fedis_total_commands", snap.TotalCommands)
	writeGauge(&b, "fedis_instantaneous_ops_per_sec", snap.OpsPerSec)
	writeGauge(&b, "fedis_key_count", snap.KeyCount)
	writeGauge(&b, "fedis_expiring_key_count", snap.ExpiringKeyCount)
	writeGauge(&b, "fedis_approx_memory_bytes", snap.ApproxMemoryBytes)
	writeGauge(&b, "fedis_aol_rewrite_count", snap.RewriteCount)
	writeGauge(&b, "fedis_aol_rewrite_failures", snap.RewriteFailures)
	writeBool(&b, "fedis_aol_rewrite_in_progress", snap.RewriteInProgress)
	writeGauge(&b, "fedis_save_count", snap.SaveCount)
	writeGauge(&b, "fedis_save_failures", snap.SaveFailures)
	writeBool(&b, "fedis_save_in_progress", snap.SaveInProgress)

	sorted := append([]CommandStat(nil), snap.Commands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, c := range sorted {
		name := strings.ToLower(c.Name)
		writeGauge(&b, fmt.Sprintf("fedis_command_calls_%s", name), c.Calls)
		writeGauge(&b, fmt.Sprintf("fedis_command_micros_%s", name), c.Micros)
	}

	w.Write([]byte(b.String()))
}

func writeGauge(b *strings.Builder, name string, v int64) {
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(v, 10))
	b.WriteByte('\n')
}

func writeBool(b *strings.Builder, name string, v bool) {
	n := int64(0)
	if v {
		n = 1
	}
	writeGauge(b, name, n)
}
