package automaton

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the execution state of a machine.
type State uint8

const (
	// StateHalted: not started or stopped. All driven pins sit at idle (low).
	StateHalted State = iota
	// StateFetch: the instruction at the program counter executes this cycle.
	StateFetch
	// StateDelay: the previous instruction is still occupying its delay cycles.
	StateDelay
	// StateStalled: an out instruction found the shift register empty and the
	// queue empty. Pins hold their level and the instruction is retried every
	// cycle. This is queue starvation; nothing else reports it.
	StateStalled
)

func (s State) String() string {
	switch s {
	case StateFetch:
		return "fetch"
	case StateDelay:
		return "delay"
	case StateStalled:
		return "stalled"
	default:
		return "halted"
	}
}

// Stats are running counters of a machine.
type Stats struct {
	Cycles       uint64
	Instructions uint64
	WordsPulled  uint64
	StallCycles  uint64
	Stalls       uint64 // distinct stall episodes
}

// Probe observes pin changes. Edge is called with the cycle at which the new
// level starts, while the machine lock is held, so it must not call back into
// the machine.
type Probe interface {
	Edge(cycle uint64, pins uint32)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(cycle uint64, pins uint32)

// Edge implements Probe.
func (f ProbeFunc) Edge(cycle uint64, pins uint32) { f(cycle, pins) }

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithProbe attaches a pin observer.
func WithProbe(p Probe) MachineOption {
	return func(m *Machine) {
		m.probe = p
	}
}

// WithSlice sets the pacing granularity of a started machine.
//
// Default: 1ms. Cycles are executed in bursts once per slice so that the
// average rate matches Frequency.
func WithSlice(d time.Duration) MachineOption {
	return func(m *Machine) {
		if d > 0 {
			m.slice = d
		}
	}
}

// WithMachineLogger sets the logger used for lifecycle messages.
func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = l
	}
}

// Machine is a software model of the timing coprocessor: a single program
// counter stepping through a fixed instruction table at a fixed cycle rate,
// branching only on scratch registers X/Y fed from the input words.
//
// Step drives it deterministically (tests, captures). Start paces it against
// the wall clock in its own goroutine; it is then not preemptible by the host
// and only Stop ends it.
//
// Machine implements Handle.
type Machine struct {
	mu    sync.Mutex
	prog  *Program
	cfg   Config
	fifo  *FIFO
	probe Probe
	mask  uint32

	state   State
	pc      int
	x, y    uint32
	osr     uint32
	shifted int
	delay   int
	pins    uint32
	cycle   uint64
	stats   Stats

	slice  time.Duration
	logger *slog.Logger

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewMachine loads prog with cfg. The machine starts halted with all pins low.
func NewMachine(prog *Program, cfg Config, opts ...MachineOption) (*Machine, error) {
	if prog == nil {
		return nil, &ConfigError{Field: "Program", Message: "nil program"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkCompatible(prog, cfg); err != nil {
		return nil, err
	}

	m := &Machine{
		prog:   prog,
		cfg:    cfg,
		fifo:   NewFIFO(cfg.FIFODepth()),
		mask:   cfg.pinMask(),
		slice:  time.Millisecond,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.reset()
	return m, nil
}

// checkCompatible verifies the config provides every pin group the program
// writes to.
func checkCompatible(prog *Program, cfg Config) error {
	if prog.SideSetCount > cfg.SideSetCount {
		return &ConfigError{Field: "SideSetCount", Message: fmt.Sprintf("program %s needs %d side-set pins, config has %d", prog.Name, prog.SideSetCount, cfg.SideSetCount)}
	}
	for _, ins := range prog.code {
		switch {
		case (ins.op == OpOut || ins.op == OpMov) && ins.dest == DestPins && cfg.OutCount == 0:
			return &ConfigError{Field: "OutCount", Message: fmt.Sprintf("program %s writes out pins but none are configured", prog.Name)}
		case ins.op == OpSet && ins.dest == DestPins && cfg.SetCount == 0:
			return &ConfigError{Field: "SetCount", Message: fmt.Sprintf("program %s sets pins but none are configured", prog.Name)}
		}
	}
	return nil
}

// reset puts the registers in their load state. Caller holds mu.
func (m *Machine) reset() {
	m.state = StateHalted
	m.pc = 0
	m.x, m.y = 0, 0
	m.osr = 0
	m.shifted = m.cfg.PullThreshold // empty: the first out pulls
	m.delay = 0
}

// Config returns the load configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// Program returns the loaded program.
func (m *Machine) Program() *Program {
	return m.prog
}

// FIFO returns the input queue.
func (m *Machine) FIFO() *FIFO {
	return m.fifo
}

// Enable arms a halted machine without starting the pacing goroutine, so it
// only advances through Step.
func (m *Machine) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateHalted {
		m.reset()
		m.state = StateFetch
	}
}

// Step advances n cycles. A halted machine does not advance.
func (m *Machine) Step(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateHalted {
		return
	}
	for i := uint64(0); i < n; i++ {
		m.tick()
	}
}

// tick advances exactly one cycle. Caller holds mu.
func (m *Machine) tick() {
	now := m.cycle
	m.cycle++
	m.stats.Cycles++
	prev := m.pins

	switch m.state {
	case StateDelay:
		m.delay--
		if m.delay == 0 {
			m.state = StateFetch
		}

	case StateFetch, StateStalled:
		ins := &m.prog.code[m.pc]
		if ins.side != noSide {
			m.drive(m.cfg.SideSetBase, m.prog.SideSetCount, uint32(ins.side))
		}
		if !m.execute(ins) {
			if m.state != StateStalled {
				m.stats.Stalls++
			}
			m.state = StateStalled
			m.stats.StallCycles++
			break
		}
		m.stats.Instructions++
		if ins.delay > 0 {
			m.delay = ins.delay
			m.state = StateDelay
		} else {
			m.state = StateFetch
		}
	}

	if m.pins != prev && m.probe != nil {
		m.probe.Edge(now, m.pins)
	}
}

// execute runs one instruction and moves the program counter. It reports
// false when the instruction stalled and must be retried.
func (m *Machine) execute(ins *Instruction) bool {
	switch ins.op {
	case OpOut:
		data, ok := m.shiftOut(ins.count)
		if !ok {
			return false
		}
		count := ins.count
		if count > m.cfg.OutCount {
			count = m.cfg.OutCount
		}
		m.write(ins.dest, data, m.cfg.OutBase, count)

	case OpSet:
		m.write(ins.dest, uint32(ins.value), m.cfg.SetBase, m.cfg.SetCount)

	case OpMov:
		v := m.read(ins.src)
		if ins.invert {
			v = ^v
		}
		m.write(ins.dest, v, m.cfg.OutBase, m.cfg.OutCount)

	case OpJmp:
		if m.condition(ins.cond) {
			m.pc = ins.addr
			return true
		}
	}

	m.pc = m.prog.next(m.pc)
	return true
}

// shiftOut takes n bits from the output shift register, refilling it from the
// queue first if the pull threshold was reached. Bits past the word width read
// as zero.
func (m *Machine) shiftOut(n int) (uint32, bool) {
	if m.shifted >= m.cfg.PullThreshold {
		w, ok := m.fifo.TryPull()
		if !ok {
			return 0, false
		}
		m.osr = w
		m.shifted = 0
		m.stats.WordsPulled++
	}

	width := m.cfg.WordWidth
	var data uint32
	for i := 0; i < n; i++ {
		var bit uint32
		if m.shifted < width {
			if m.cfg.ShiftDir == MSBFirst {
				bit = (m.osr >> uint(width-1-m.shifted)) & 1
			} else {
				bit = (m.osr >> uint(m.shifted)) & 1
			}
		}
		m.shifted++
		if m.cfg.ShiftDir == MSBFirst {
			data = data<<1 | bit
		} else {
			data |= bit << uint(i)
		}
	}
	return data, true
}

func (m *Machine) condition(c Cond) bool {
	switch c {
	case XZero:
		return m.x == 0
	case XNotZero:
		return m.x != 0
	case XDec:
		taken := m.x != 0
		m.x--
		return taken
	case YZero:
		return m.y == 0
	case YNotZero:
		return m.y != 0
	case YDec:
		taken := m.y != 0
		m.y--
		return taken
	default:
		return true
	}
}

func (m *Machine) read(src Source) uint32 {
	switch src {
	case SrcX:
		return m.x
	case SrcY:
		return m.y
	case SrcPins:
		return (m.pins & groupMask(m.cfg.OutBase, m.cfg.OutCount)) >> uint(m.cfg.OutBase)
	default:
		return 0
	}
}

func (m *Machine) write(dest Dest, v uint32, base, count int) {
	switch dest {
	case DestPins:
		m.drive(base, count, v)
	case DestX:
		m.x = v
	case DestY:
		m.y = v
	}
}

// drive sets count pins starting at base to the low bits of v.
func (m *Machine) drive(base, count int, v uint32) {
	mask := groupMask(base, count)
	m.pins = m.pins&^mask | (v<<uint(base))&mask
}

// Start arms the machine and runs it against the wall clock until Stop.
// Implements Handle.
func (m *Machine) Start() error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running {
		return nil
	}
	m.Enable()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Debug("automaton started", "program", m.prog.Name, "frequency", m.cfg.Frequency)
	return nil
}

// run executes cycles in bursts so the average rate matches Frequency. A
// backlog larger than a few slices (host suspended, GC pause) is dropped
// rather than replayed at full speed, which would distort the timing.
func (m *Machine) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.slice)
	defer ticker.Stop()

	start := time.Now()
	maxBurst := uint64(m.cfg.Frequency*m.slice.Seconds()*4) + 1
	var done uint64

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			target := uint64(now.Sub(start).Seconds() * m.cfg.Frequency)
			if target <= done {
				continue
			}
			n := target - done
			if n > maxBurst {
				done = target - maxBurst
				n = maxBurst
			}
			m.Step(n)
			done += n
		}
	}
}

// Stop halts the machine and drives every configured pin to idle (low).
// Queued words are discarded. Safe to call on a machine that was only
// enabled, or twice. Implements Handle.
func (m *Machine) Stop() error {
	m.runMu.Lock()
	if m.running {
		m.cancel()
		m.wg.Wait()
		m.running = false
	}
	m.runMu.Unlock()

	m.Halt()
	return nil
}

// Halt stops execution between cycles and idles the pins.
func (m *Machine) Halt() {
	m.mu.Lock()
	prev := m.pins
	m.reset()
	m.pins &^= m.mask
	if m.pins != prev && m.probe != nil {
		m.probe.Edge(m.cycle, m.pins)
	}
	m.mu.Unlock()

	if n := m.fifo.Drain(); n > 0 {
		m.logger.Debug("automaton halted with queued words", "program", m.prog.Name, "discarded", n)
	}
}

// Push queues one word for the machine, blocking while the queue is full.
// Implements Handle.
func (m *Machine) Push(ctx context.Context, word uint32) error {
	if m.cfg.WordWidth < 32 && word>>uint(m.cfg.WordWidth) != 0 {
		return &WordError{Word: word, Width: m.cfg.WordWidth}
	}
	return m.fifo.Push(ctx, word)
}

// Pins returns the current level of all 32 pins.
func (m *Machine) Pins() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pins
}

// Pin reports the level of one pin.
func (m *Machine) Pin(n int) bool {
	return m.Pins()&(1<<uint(n)) != 0
}

// State returns the current execution state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cycle returns the number of cycles executed since load.
func (m *Machine) Cycle() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycle
}

// Stats returns a copy of the counters.
func (m *Machine) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
