// Package topdevice implements the top device (spec §4.N): CBOR
// snapshots of scheduler task stats and free memory, built by
// HandleTopAsk and HandleMemAsk and handed to a publish callback. The
// device is not an mqttbridge.MQTTDevice and subscribes to no topic
// itself; its caller decides when the two handlers run.
//
// Grounded on the pack's system-metrics dependency
// github.com/shirou/gopsutil/v3 (memory sampling) and
// github.com/prometheus/client_golang (the same counters additionally
// exported as Prometheus gauges for an installation that wants a
// scrape endpoint alongside the MQTT debug topics).
package topdevice

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/uniot-io/uniot-core/internal/scheduler"
)

// TaskStat is one entry of the `top` response's `tasks` map value
// (spec §4.N: `[attached, elapsed_ms]`), encoded as a two-element array.
type TaskStat struct {
	_         struct{} `cbor:",toarray"`
	Attached  bool     `cbor:"attached"`
	ElapsedMS int64    `cbor:"elapsed_ms"`
}

// TopResponse answers `debug/top`.
type TopResponse struct {
	Tasks     map[string]TaskStat `cbor:"tasks"`
	IdleMS    int64               `cbor:"idle"`
	Timestamp int64               `cbor:"timestamp"`
	UptimeMS  int64               `cbor:"uptime"`
}

// MemResponse answers `debug/mem`.
type MemResponse struct {
	Available uint64 `cbor:"available"`
}

// Device is the spec's top device. It owns no topic subscriptions and
// has no MQTT message handler: HandleTopAsk and HandleMemAsk are called
// directly by whoever drives it.
type Device struct {
	sched   *scheduler.Scheduler
	started time.Time

	topTopic string
	memTopic string

	publish func(topic string, payload []byte)

	registry       *prometheus.Registry
	availableGauge prometheus.Gauge
	idleGauge      prometheus.Gauge
}

// New wires a Device to sched, the two response topics to publish on,
// and a publish callback that receives each encoded response. Each Device owns its own Prometheus registry (Registry) so
// that wiring more than one Device in a process, or in tests, never
// collides with the global default registerer.
func New(sched *scheduler.Scheduler, topTopic, memTopic string, publish func(topic string, payload []byte)) *Device {
	d := &Device{
		sched:    sched,
		started:  time.Time{},
		topTopic: topTopic,
		memTopic: memTopic,
		publish:  publish,
		registry: prometheus.NewRegistry(),
		availableGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uniot_free_heap_bytes",
			Help: "Free heap bytes as last reported to the top device.",
		}),
		idleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uniot_scheduler_idle_ms",
			Help: "Scheduler idle time in milliseconds since start, as last reported.",
		}),
	}
	d.registry.MustRegister(d.availableGauge, d.idleGauge)
	return d
}

// Registry returns the device's Prometheus registry, for an
// installation that wants to serve it over an HTTP scrape endpoint
// alongside the MQTT debug topics.
func (d *Device) Registry() *prometheus.Registry {
	return d.registry
}

// HandleTopAsk answers `debug/top/ask` by publishing a TopResponse
// built from the scheduler's current task stats.
func (d *Device) HandleTopAsk(now time.Time) {
	tasks := make(map[string]TaskStat)
	d.sched.ExportTasksInfo(func(info scheduler.TaskInfo) {
		tasks[info.Name] = TaskStat{Attached: info.Attached, ElapsedMS: info.TotalElapsedMS}
	})

	idle := d.sched.IdleMS(now)
	d.idleGauge.Set(float64(idle))

	resp := TopResponse{
		Tasks:     tasks,
		IdleMS:    idle,
		Timestamp: now.Unix(),
		UptimeMS:  now.Sub(d.started).Milliseconds(),
	}
	raw, err := cbor.Marshal(resp)
	if err != nil {
		return
	}
	d.publish(d.topTopic, raw)
}

// HandleMemAsk answers `debug/mem/ask` with the host's available
// memory, sampled via gopsutil.
func (d *Device) HandleMemAsk() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	d.availableGauge.Set(float64(vm.Available))

	raw, err := cbor.Marshal(MemResponse{Available: vm.Available})
	if err != nil {
		return
	}
	d.publish(d.memTopic, raw)
}

// SetStarted records the process start time used for UptimeMS.
func (d *Device) SetStarted(t time.Time) {
	d.started = t
}
