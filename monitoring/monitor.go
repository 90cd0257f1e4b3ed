// Package monitoring turns a running simulation into a web server so that
// caches and progress can be inspected while a long trace is processed.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/cachesim/mem/cache"
)

// ErrNotStarted is returned by operations that need a running server.
var ErrNotStarted = errors.New("monitor server not started")

type monitoredSimulator struct {
	lock      sync.Mutex
	simulator *cache.Simulator
}

// Monitor can turn a simulation into a server and allows external monitoring
// of the simulation.
type Monitor struct {
	portNumber int

	simulatorsLock sync.Mutex
	simulators     []*monitoredSimulator

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
	url    string
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterSimulator registers a simulator to be monitored. The returned lock
// must be held by whoever advances the simulator, so that the monitor never
// reads a cache in the middle of an access.
func (m *Monitor) RegisterSimulator(s *cache.Simulator) sync.Locker {
	m.simulatorsLock.Lock()
	defer m.simulatorsLock.Unlock()

	for _, registered := range m.simulators {
		if registered.simulator.Name() == s.Name() {
			panic(fmt.Sprintf("simulator %s already registered", s.Name()))
		}
	}

	ms := &monitoredSimulator{simulator: s}
	m.simulators = append(m.simulators, ms)

	return &ms.lock
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router that serves the monitoring API.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_caches", m.listCaches).Methods(http.MethodGet)
	r.HandleFunc("/api/report/{name}", m.report).Methods(http.MethodGet)
	r.HandleFunc("/api/cache/{name}", m.cacheDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/field/{json}", m.listFieldValue).Methods(http.MethodGet)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", m.listResources).Methods(http.MethodGet)
	r.HandleFunc("/api/profile", m.collectProfile).Methods(http.MethodGet)

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return "", fmt.Errorf("start monitor: %w", err)
	}

	m.url = fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", m.url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Panic(err)
		}
	}()

	return m.url, nil
}

// URL returns the address of the running server.
func (m *Monitor) URL() string {
	return m.url
}

// OpenInBrowser opens the monitor in the default web browser.
func (m *Monitor) OpenInBrowser() error {
	if m.server == nil {
		return ErrNotStarted
	}

	return browser.OpenURL(m.url)
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) listCaches(w http.ResponseWriter, _ *http.Request) {
	m.simulatorsLock.Lock()
	names := make([]string, 0, len(m.simulators))
	for _, s := range m.simulators {
		names = append(names, s.simulator.Name())
	}
	m.simulatorsLock.Unlock()

	writeJSON(w, names)
}

func (m *Monitor) report(w http.ResponseWriter, r *http.Request) {
	s := m.findSimulatorOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	s.lock.Lock()
	report := s.simulator.Summary()
	s.lock.Unlock()

	writeJSON(w, report)
}

func (m *Monitor) cacheDetails(w http.ResponseWriter, r *http.Request) {
	s := m.findSimulatorOr404(w, mux.Vars(r)["name"])
	if s == nil {
		return
	}

	m.serializeSimulator(w, s, nil)
}

type fieldReq struct {
	CacheName string `json:"cache_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s := m.findSimulatorOr404(w, req.CacheName)
	if s == nil {
		return
	}

	m.serializeSimulator(w, s, strings.Split(req.FieldName, "."))
}

func (m *Monitor) serializeSimulator(
	w http.ResponseWriter,
	s *monitoredSimulator,
	entryPoint []string,
) {
	s.lock.Lock()
	defer s.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(s.simulator)
	serializer.SetMaxDepth(1)

	if entryPoint != nil {
		err := serializer.SetEntryPoint(entryPoint)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	buf := bytes.NewBuffer(nil)

	err := serializer.Serialize(buf)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

func (m *Monitor) findSimulatorOr404(
	w http.ResponseWriter,
	name string,
) *monitoredSimulator {
	m.simulatorsLock.Lock()
	defer m.simulatorsLock.Unlock()

	for _, s := range m.simulators {
		if s.simulator.Name() == name {
			return s
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Cache not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	snapshots := make([]progressBarSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		snapshots = append(snapshots, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, snapshots)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	writeJSON(w, rsp)
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
