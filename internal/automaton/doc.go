// Package automaton models the timing coprocessor that turns queued words into
// track waveforms.
//
// A Machine executes one small Program at a fixed cycle rate. Every
// instruction takes one cycle plus its delay, so pulse widths are a property
// of the instruction table and nothing else.
//
// EXECUTION MODEL:
//
// Single program counter, two scratch registers (X, Y), one output shift
// register. The only branch inputs are the bit just shifted into X and the
// decrementing counters in X/Y (preamble, cutout and repeat loops).
//
// States:
// - StateHalted: not running, pins idle (low)
// - StateFetch: the instruction at PC executes this cycle
// - StateDelay: the previous instruction's delay cycles elapse
// - StateStalled: out on an empty shift register and an empty queue
//
// Autopull:
// Once PullThreshold bits have been shifted out, the next out refills the
// shift register from the FIFO. If the FIFO is empty the machine stalls and
// holds every pin. Nothing inside the machine detects or reports this beyond
// Stats().StallCycles; keeping the queue fed is the producer's job.
//
// Back-pressure:
// FIFO.Push blocks while the queue is full. That is the only coupling between
// the host producer and the cycle rate; the queue never grows.
//
// DRIVING A MACHINE:
//
// Step(n) advances exactly n cycles and is what tests and captures use.
// Start() paces the machine against the wall clock in its own goroutine.
// Stop() halts it between cycles and drives every configured pin low.
//
// The built-in programs (Selectrix, DCC, DCCRailcom, Motorola, MFX, MFXSync)
// come with Profile constructors that fill in the matching Config.
package automaton
