// Package monitor optionally turns a running Simulation into a tiny HTTP
// server exposing its progress, so a long run can be watched without
// waiting for the final report. It only ever reads simulation state; it
// never drives it.
package monitor

import (
	"bytes"
	"encoding/json"
	"log"
	"net"
	"net/http"

	// Enable profiling.
	_ "net/http/pprof"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/syifan/goseth"
)

// Snapshot is the point-in-time simulation state exposed over HTTP.
type Snapshot struct {
	Cycle       uint64      `json:"cycle"`
	CoresDone   int         `json:"cores_done"`
	CoreStates  []CoreState `json:"core_states"`
	BusBusy     bool        `json:"bus_busy"`
	QueueLength int         `json:"bus_queue_length"`
}

// CoreState is one core's progress as of the latest Snapshot.
type CoreState struct {
	ID           int    `json:"id"`
	Finished     bool   `json:"finished"`
	Blocked      bool   `json:"blocked"`
	Instructions uint64 `json:"instructions"`
}

// Monitor serves the latest Snapshot taken by the owning simulator loop.
type Monitor struct {
	logger *log.Logger

	mu       sync.RWMutex
	snapshot Snapshot

	server *http.Server
}

// New creates a Monitor. Call Update once per cycle from the simulator
// loop and Start to begin serving.
func New(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}

	return &Monitor{logger: logger}
}

// Update replaces the latest snapshot. Safe to call from the simulator
// loop while Start is serving requests on another goroutine.
func (m *Monitor) Update(s Snapshot) {
	m.mu.Lock()
	m.snapshot = s
	m.mu.Unlock()
}

func (m *Monitor) current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshot
}

// Start begins serving the status endpoint at addr in the background. If
// open is true, it also opens the status page in the user's default
// browser once the server is listening.
func (m *Monitor) Start(addr string, open bool) error {
	router := mux.NewRouter()
	router.HandleFunc("/status", m.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/health", m.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/profile", m.collectProfile).Methods(http.MethodGet)
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	m.server = &http.Server{Addr: addr, Handler: router}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		if err := m.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.logger.Printf("monitor: server stopped: %v", err)
		}
	}()

	if open {
		url := "http://" + ln.Addr().String() + "/status"
		if err := browser.OpenURL(url); err != nil {
			m.logger.Printf("monitor: could not open browser: %v", err)
		}
	}

	return nil
}

// Stop shuts the HTTP server down.
func (m *Monitor) Stop() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

// handleStatus serializes the current Snapshot with goseth rather than a
// hand-rolled json.Marshal, the same way the teacher's component inspection
// endpoints do, so fields added to Snapshot or CoreState show up here
// without a matching change to this handler.
func (m *Monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snapshot := m.current()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(snapshot)
	serializer.SetMaxDepth(2)

	if err := serializer.Serialize(w); err != nil {
		m.logger.Printf("monitor: serializing status: %v", err)
	}
}

func (m *Monitor) handleHealth(w http.ResponseWriter, _ *http.Request) {
	percents, _ := cpu.Percent(0, false)
	vm, _ := mem.VirtualMemory()

	health := struct {
		CPUPercent     []float64 `json:"cpu_percent"`
		MemUsedPercent float64   `json:"mem_used_percent"`
	}{
		CPUPercent: percents,
	}

	if vm != nil {
		health.MemUsedPercent = vm.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health)
}

// collectProfile captures one second of CPU profile of the running
// simulation process and returns it as a parsed pprof profile, so a slow
// run can be diagnosed without attaching a separate profiler.
func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	time.Sleep(time.Second)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(prof)
}
