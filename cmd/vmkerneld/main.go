// Command vmkerneld is a demo entry point for the virtual-memory core: it
// wires a simulated MMU, physical frame pool, and swap device together,
// runs the core's end-to-end scenarios once at startup, and optionally
// serves Prometheus metrics. Grounded on biscuit/src/kernel/chentry.go's
// kernel-entry shape and talyz-systemd_exporter's main() (flag parsing,
// metrics server, systemd readiness notification).
package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"

	"vmcore/defs"
	"vmcore/metrics"
	"vmcore/profdump"
	"vmcore/stat"
	"vmcore/swap"
	"vmcore/vfile"
	"vmcore/vm"
)

var buildVersion = "0.1.0"

var (
	numFrames   = kingpin.Flag("frames", "number of physical frames in the demo pool").Default("16").Int()
	swapSectors = kingpin.Flag("swap-sectors", "sector capacity of the simulated swap device").Default("256").Int()
	metricsAddr = kingpin.Flag("metrics-addr", "address to serve /metrics on; empty disables it").Default("").String()
	showVersion = kingpin.Flag("version", "print version and exit").Bool()
)

func main() {
	kingpin.Parse()

	if *showVersion {
		v, err := semver.NewVersion(buildVersion)
		if err != nil {
			fmt.Println(buildVersion)
		} else {
			fmt.Println(v.String())
		}
		return
	}

	frameCount := *numFrames
	if n, err := metrics.HostFramePoolSize(int64(vm.PGSIZE), *numFrames); err != nil {
		fmt.Fprintf(os.Stderr, "vmkerneld: sizing pool from /proc/meminfo: %v; using --frames=%d\n", err, *numFrames)
	} else {
		frameCount = n
	}

	pool := newFramePool(frameCount, vm.PGSIZE)
	disk := swap.NewMemDisk(*swapSectors)
	kern := vm.NewKernel(pool, disk)

	pt := newSimplePT()
	space := vm.NewSpace(kern, pt, defs.Tid_t(1))

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(metrics.NewCollector(kern.Frames, kern.Swap, &space.Accnt))
		reg.MustRegister(metrics.BuildInfoCollector())
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				fmt.Fprintf(os.Stderr, "vmkerneld: metrics server: %v\n", err)
			}
		}()
		if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			fmt.Fprintf(os.Stderr, "vmkerneld: sd_notify: %v\n", err)
		} else if ok {
			fmt.Println("vmkerneld: notified systemd readiness")
		}
	}

	runScenarios(kern, space, frameCount)

	if err := deviceRead(defs.Mkdev(defs.D_STAT, 0), os.Stdout, kern, space); err != nil {
		fmt.Fprintf(os.Stderr, "vmkerneld: read stat device: %v\n", err)
	}
	if err := deviceRead(defs.Mkdev(defs.D_PROF, 0), os.Stdout, kern, space); err != nil {
		fmt.Fprintf(os.Stderr, "vmkerneld: read profile device: %v\n", err)
	}
}

// deviceRead services a read from one of the demo kernel's named devices,
// the same major/minor dispatch a real VFS layer performs before handing a
// read off to a character device (defs.D_FIRST..defs.D_LAST).
func deviceRead(dev uint, w io.Writer, kern *vm.Kernel, space *vm.Space) error {
	maj, _ := defs.Unmkdev(dev)
	if maj < defs.D_FIRST || maj > defs.D_LAST {
		return fmt.Errorf("device %#x out of range", dev)
	}
	switch maj {
	case defs.D_STAT:
		snap := stat.Snapshot{
			ResidentFrames: kern.Frames.Resident(),
			TotalFrames:    kern.Frames.Len(),
			SwapUsed:       kern.Swap.Used(),
			SwapTotal:      kern.Swap.NumSlots(),
			Accnt:          space.Accnt.Snap(),
		}
		_, err := io.WriteString(w, snap.String())
		return err
	case defs.D_PROF:
		return profdump.Write(w, kern.Frames, int64(vm.PGSIZE))
	case defs.D_CONSOLE, defs.D_DEVNULL, defs.D_RAWDISK, defs.D_SWAP:
		return fmt.Errorf("device %#x not backed by this demo kernel", dev)
	default:
		return fmt.Errorf("device %#x unknown", dev)
	}
}

func runScenarios(kern *vm.Kernel, space *vm.Space, numFrames int) {
	fmt.Println(kern.String())

	// Scenario: lazy zero page.
	const anonVA = 0x10000000
	space.AllocPage(vm.KindAnon, anonVA, true)
	fi := vm.FaultInfo{VA: anonVA, Write: true}
	if e := space.HandleFault(fi); e != 0 {
		fmt.Printf("scenario lazy-anon: fault failed: %v\n", e)
	} else {
		fmt.Println("scenario lazy-anon: ok, page resident and zeroed")
	}

	// Scenario: file-backed mmap with tail zero-fill.
	content := []byte("hello, virtual memory")
	f := vfile.NewMemFile(content)
	const fileVA = 0x20000000
	head, e := space.Mmap(fileVA, f, 0, len(content), false)
	if e != 0 {
		fmt.Printf("scenario mmap: failed: %v\n", e)
	} else {
		if e := space.HandleFault(vm.FaultInfo{VA: fileVA}); e != 0 {
			fmt.Printf("scenario mmap: fault failed: %v\n", e)
		} else {
			fmt.Println("scenario mmap: ok, file page resident with zero-filled tail")
		}
		space.Munmap(head)
		fmt.Println("scenario mmap: unmapped cleanly")
	}

	// Scenario: swap cycle forcing eviction across frames+8 pages. Each
	// page is stamped with its own address while resident, then every page
	// is re-faulted in reverse order to confirm the stamped byte pattern
	// survives the round trip through swap.
	n := numFrames + 8
	vas := make([]uintptr, n)
	swapCycleOK := true
	for i := 0; i < n; i++ {
		va := uintptr(0x30000000 + i*vm.PGSIZE)
		vas[i] = va
		space.AllocPage(vm.KindAnon, va, true)
		if e := space.HandleFault(vm.FaultInfo{VA: va, Write: true}); e != 0 {
			fmt.Printf("scenario swap-cycle: fault %d failed: %v\n", i, e)
			swapCycleOK = false
			break
		}
		if p, ok := space.SPT.Find(va); ok {
			binary.LittleEndian.PutUint64(p.Frame.Kva[:8], uint64(va))
		}
	}
	fmt.Printf("scenario swap-cycle: touched %d pages across %d frames; %s\n", n, numFrames, kern.String())

	if swapCycleOK {
		for i := n - 1; i >= 0; i-- {
			va := vas[i]
			if e := space.HandleFault(vm.FaultInfo{VA: va, Write: false}); e != 0 {
				fmt.Printf("scenario swap-cycle: re-fault %d failed: %v\n", i, e)
				swapCycleOK = false
				break
			}
			p, ok := space.SPT.Find(va)
			if !ok || binary.LittleEndian.Uint64(p.Frame.Kva[:8]) != uint64(va) {
				fmt.Printf("scenario swap-cycle: page %d lost its stamped contents across swap\n", i)
				swapCycleOK = false
				break
			}
		}
	}
	if swapCycleOK {
		fmt.Println("scenario swap-cycle: ok, every page's contents survived its round trip to swap")
	}

	// Scenario: stack growth.
	stackVA := uintptr(vm.USER_STACK - vm.PGSIZE)
	if e := space.HandleFault(vm.FaultInfo{VA: stackVA, Write: true, RSP: stackVA}); e != 0 {
		fmt.Printf("scenario stack-growth: failed: %v\n", e)
	} else {
		fmt.Println("scenario stack-growth: ok, one page installed below USER_STACK")
	}
	tooFarVA := uintptr(vm.USER_STACK - vm.StackCap - vm.PGSIZE)
	if e := space.HandleFault(vm.FaultInfo{VA: tooFarVA, Write: true, RSP: tooFarVA}); e == 0 {
		fmt.Println("scenario stack-growth-reject: unexpectedly succeeded")
	} else {
		fmt.Println("scenario stack-growth-reject: ok, fault beyond StackCap rejected")
	}

	// Scenario: fork anon isolation.
	childPT := newSimplePT()
	child := vm.NewSpace(kern, childPT, defs.Tid_t(2))
	if ok := vm.CopySPT(child, space); !ok {
		fmt.Println("scenario fork: CopySPT failed")
	} else {
		fmt.Println("scenario fork: ok, child SPT populated with isolated anon copies")
	}
}

// framePool is a fixed-size physical-page pool for the demo kernel,
// grounded on biscuit/src/mem/mem.go's free-list allocator shape.
type framePool struct {
	mu   sync.Mutex
	free [][]byte
}

func newFramePool(n int, pgsize int) *framePool {
	p := &framePool{}
	for i := 0; i < n; i++ {
		p.free = append(p.free, make([]byte, pgsize))
	}
	return p
}

func (p *framePool) AllocZeroed() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return nil
	}
	kva := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	for i := range kva {
		kva[i] = 0
	}
	return kva
}

func (p *framePool) Free(kva []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, kva)
}

// simplePT is a software page table standing in for real hardware paging,
// grounded on biscuit/src/mem/pmap.go's pmap entry bookkeeping.
type simplePT struct {
	mu      sync.Mutex
	entries map[uintptr]*ptEntry
}

type ptEntry struct {
	kva      []byte
	writable bool
	accessed bool
	dirty    bool
}

func newSimplePT() *simplePT {
	return &simplePT{entries: make(map[uintptr]*ptEntry)}
}

func (t *simplePT) SetPTE(va uintptr, kva []byte, writable bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[va] = &ptEntry{kva: kva, writable: writable}
	return true
}

func (t *simplePT) ClearPTE(va uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, va)
}

func (t *simplePT) IsMapped(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[va]
	return ok
}

func (t *simplePT) IsAccessed(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[va]
	return ok && e.accessed
}

func (t *simplePT) SetAccessed(va uintptr, v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[va]; ok {
		e.accessed = v
	}
}

func (t *simplePT) IsDirty(va uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[va]
	return ok && e.dirty
}

func (t *simplePT) Activate() {}
