// Package metrics exports virtual-memory core counters as Prometheus
// metrics. Grounded on talyz-systemd_exporter's collector-over-counters
// pattern (e.g. its cgroup/memory.go, which wraps a plain counter struct in
// a prometheus.Collector rather than registering raw counters directly).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	"github.com/prometheus/procfs"

	"vmcore/accnt"
	"vmcore/frame"
	"vmcore/swap"
)

const namespace = "vmcore"

// Collector adapts a running kernel's Frames/Swap/Accnt state into
// Prometheus metrics on each scrape (spec.md "debug dump", Prometheus form).
type Collector struct {
	frames *frame.Table
	sw     *swap.SlotAllocator
	acc    *accnt.Accnt_t

	residentFrames *prometheus.Desc
	totalFrames    *prometheus.Desc
	swapUsed       *prometheus.Desc
	swapTotal      *prometheus.Desc
	pageFaults     *prometheus.Desc
	minorFaults    *prometheus.Desc
	majorFaults    *prometheus.Desc
	swapIns        *prometheus.Desc
	swapOuts       *prometheus.Desc
	evictions      *prometheus.Desc
}

// NewCollector wires frames/sw/acc into a prometheus.Collector.
func NewCollector(frames *frame.Table, sw *swap.SlotAllocator, acc *accnt.Accnt_t) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		frames:         frames,
		sw:             sw,
		acc:            acc,
		residentFrames: desc("resident_frames", "Frames currently owned by a page."),
		totalFrames:    desc("total_frames", "Frames currently tracked by the frame table."),
		swapUsed:       desc("swap_slots_used", "Swap slots currently reserved."),
		swapTotal:      desc("swap_slots_total", "Total swap slot capacity."),
		pageFaults:     desc("page_faults_total", "Page faults handled."),
		minorFaults:    desc("minor_faults_total", "Page faults resolved without disk I/O."),
		majorFaults:    desc("major_faults_total", "Page faults resolved by reading swap or a file."),
		swapIns:        desc("swap_ins_total", "Pages read back from swap or a backing file."),
		swapOuts:       desc("swap_outs_total", "Pages written out to swap or a backing file."),
		evictions:      desc("evictions_total", "Frame-table evictions performed."),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.residentFrames
	ch <- c.totalFrames
	ch <- c.swapUsed
	ch <- c.swapTotal
	ch <- c.pageFaults
	ch <- c.minorFaults
	ch <- c.majorFaults
	ch <- c.swapIns
	ch <- c.swapOuts
	ch <- c.evictions
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.residentFrames, prometheus.GaugeValue, float64(c.frames.Resident()))
	ch <- prometheus.MustNewConstMetric(c.totalFrames, prometheus.GaugeValue, float64(c.frames.Len()))
	ch <- prometheus.MustNewConstMetric(c.swapUsed, prometheus.GaugeValue, float64(c.sw.Used()))
	ch <- prometheus.MustNewConstMetric(c.swapTotal, prometheus.GaugeValue, float64(c.sw.NumSlots()))

	s := c.acc.Snap()
	ch <- prometheus.MustNewConstMetric(c.pageFaults, prometheus.CounterValue, float64(s.PageFaults))
	ch <- prometheus.MustNewConstMetric(c.minorFaults, prometheus.CounterValue, float64(s.MinorFaults))
	ch <- prometheus.MustNewConstMetric(c.majorFaults, prometheus.CounterValue, float64(s.MajorFaults))
	ch <- prometheus.MustNewConstMetric(c.swapIns, prometheus.CounterValue, float64(s.SwapIns))
	ch <- prometheus.MustNewConstMetric(c.swapOuts, prometheus.CounterValue, float64(s.SwapOuts))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions))
}

// BuildInfoCollector exposes the running binary's version via
// prometheus/common/version, the same build-info metric every Prometheus
// exporter registers alongside its domain collector.
func BuildInfoCollector() prometheus.Collector {
	return version.NewCollector(namespace)
}

// HostFramePoolSize reads the host's currently available memory via
// procfs.Meminfo and returns how many PGSIZE-sized frames a demo frame pool
// could draw from it, sized to at most maxFrames (spec.md "domain stack":
// procfs sizes the demo pool from real host memory rather than a fixed
// constant).
func HostFramePoolSize(pgsize int64, maxFrames int) (int, error) {
	fs, err := procfs.NewFS(procfs.DefaultMountPoint)
	if err != nil {
		return 0, err
	}
	mi, err := fs.Meminfo()
	if err != nil {
		return 0, err
	}
	if mi.MemAvailable == nil {
		return maxFrames, nil
	}
	available := int64(*mi.MemAvailable) * 1024
	n := int(available / pgsize)
	if n > maxFrames {
		n = maxFrames
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}
