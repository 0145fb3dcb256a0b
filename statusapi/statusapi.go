// Package statusapi serves the bridge's read-only HTTP surface:
// current configuration, per-port status, and Prometheus metrics.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gopatchy/dmxbridge/config"
	"github.com/gopatchy/dmxbridge/output"
	"github.com/gopatchy/dmxbridge/router"
	"github.com/gopatchy/dmxbridge/telemetry"
)

// Server wires the status/metrics handlers and config so they can be
// served over a single http.ServeMux.
type Server struct {
	cfg   *config.Config
	rt    *router.Router
	sched *output.Scheduler
	tel   *telemetry.Telemetry
}

func New(cfg *config.Config, rt *router.Router, sched *output.Scheduler, tel *telemetry.Telemetry) *Server {
	return &Server{cfg: cfg, rt: rt, sched: sched, tel: tel}
}

// Mux builds the handler tree: /api/config, /api/status, /metrics.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	return mux
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", "dmxbridge")
	json.NewEncoder(w).Encode(s.cfg)
}

type portStatus struct {
	Name          string             `json:"name"`
	Active        bool               `json:"active"`
	Ticks         uint64             `json:"ticks"`
	ActiveSources []activeSourceView `json:"active_sources"`
	Stats         statsView          `json:"stats"`
}

type activeSourceView struct {
	Protocol   string    `json:"protocol"`
	IP         string    `json:"ip"`
	Universe   uint16    `json:"universe"`
	Priority   uint8     `json:"priority"`
	SourceName string    `json:"source_name,omitempty"`
	LastSeen   time.Time `json:"last_seen"`
}

type statsView struct {
	TotalMerges    uint64 `json:"total_merges"`
	HTPMerges      uint64 `json:"htp_merges"`
	LTPMerges      uint64 `json:"ltp_merges"`
	LastMerges     uint64 `json:"last_merges"`
	BackupSwitches uint64 `json:"backup_switches"`
	SourceTimeouts uint64 `json:"source_timeouts"`
	ActiveSources  uint8  `json:"active_sources"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Server", "dmxbridge")

	out := make([]portStatus, 0, len(s.rt.Ports()))
	for name, p := range s.rt.Ports() {
		_, active := p.Ctx.Output()
		st := p.Ctx.GetStats()

		active_sources := p.Ctx.ListActive()
		views := make([]activeSourceView, 0, len(active_sources))
		for _, as := range active_sources {
			views = append(views, activeSourceView{
				Protocol:   as.Key.Protocol.String(),
				IP:         as.Key.IP,
				Universe:   as.Universe,
				Priority:   as.Priority,
				SourceName: as.SourceName,
				LastSeen:   as.LastSeen,
			})
		}

		out = append(out, portStatus{
			Name:          name,
			Active:        active,
			Ticks:         s.sched.TickCount(name),
			ActiveSources: views,
			Stats: statsView{
				TotalMerges:    st.TotalMerges,
				HTPMerges:      st.HTPMerges,
				LTPMerges:      st.LTPMerges,
				LastMerges:     st.LastMerges,
				BackupSwitches: st.BackupSwitches,
				SourceTimeouts: st.SourceTimeouts,
				ActiveSources:  st.ActiveSources,
			},
		})
	}

	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.tel.WritePrometheus(w)
}
