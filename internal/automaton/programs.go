package automaton

// Cycle rates of the built-in programs, in Hz.
const (
	SelectrixFrequency         = 1_000_000 // 1 µs per cycle
	DCCFrequency               = 500_000   // 2 µs per cycle
	MotorolaLocoFrequency      = 38_400    // 8 cycles = 208 µs per bit
	MotorolaAccessoryFrequency = 76_800    // 8 cycles = 104 µs per bit
	MFXFrequency               = 100_000   // 10 cycles = 100 µs per bit
)

// Input word widths in bits.
const (
	SelectrixWordWidth       = 32
	DCCWordWidth             = 9
	DCCRailcomCountWordWidth = 9
	MotorolaWordWidth        = 18
	MFXWordWidth             = 18
	MFXSyncCountWordWidth    = 4
)

const (
	SelectrixCyclesPerBit  = selectrixClockLowCycles + selectrixClockHighCycles
	DCCRailcomCutoutCycles = 1 + 28*8

	selectrixClockLowCycles     = 10
	selectrixClockHighCycles    = 40
	selectrixDifferentialSymbol = 2
)

// Selectrix drives the clock line (side-set) low for 10 cycles while the next
// data bit is put on the data line, then high for 40 cycles. At 1 MHz that is
// the 10 µs / 40 µs bit cell of the SX1 bus.
var Selectrix = MustProgram("selectrix", 1,
	Out(DestPins, 1).Side(0).Delay(selectrixClockLowCycles-1),
	Nop().Side(1).Delay(15),
	Nop().Side(1).Delay(15),
	Nop().Side(1).Delay(selectrixClockHighCycles-32-1),
)

// SelectrixDifferential is Selectrix with a 2-bit polarity symbol driven onto
// two data lines per bit cell.
var SelectrixDifferential = MustProgram("selectrix_differential", 1,
	Out(DestPins, selectrixDifferentialSymbol).Side(0).Delay(selectrixClockLowCycles-1),
	Nop().Side(1).Delay(15),
	Nop().Side(1).Delay(15),
	Nop().Side(1).Delay(selectrixClockHighCycles-32-1),
)

// DCC emits one NMRA bit cell per input bit: 29+29 cycles (58+58 µs) for a
// one, 50+50 cycles (100+100 µs) for a zero.
var DCC = MustProgram("dcc", 0,
	Label("do_high"),
	Out(DestX, 1),
	Set(DestPins, 1).Delay(13),
	Jmp(XZero, "do_zero").Delay(13),
	Jmp(Always, "do_low"),
	Label("do_zero"),
	Nop().Delay(16),
	Nop().Delay(4),
	Set(DestPins, 0).Delay(15),
	Nop().Delay(4),
	Label("do_low"),
	Set(DestPins, 0).Delay(13),
	Jmp(Always, "do_high").Delay(13),
)

// DCCRailcom reads a 9-bit count word (bits-1), emits that many bit cells,
// then a 28 µs lead and a 450 µs cutout with the side-set line asserted and
// the data line held high.
var DCCRailcom = MustProgram("dcc_railcom", 1,
	Out(DestY, DCCRailcomCountWordWidth).Side(0),
	Label("do_high"),
	Out(DestX, 1).Side(0),
	Set(DestPins, 1).Side(0).Delay(13),
	Jmp(XZero, "do_zero").Side(0).Delay(13),
	Jmp(Always, "do_low").Side(0),
	Label("do_zero"),
	Nop().Side(0).Delay(15),
	Nop().Side(0).Delay(5),
	Set(DestPins, 0).Side(0).Delay(15),
	Nop().Side(0).Delay(4),
	Label("do_low"),
	Set(DestPins, 0).Side(0).Delay(13),
	Jmp(YDec, "do_high").Side(0).Delay(13),
	Set(DestPins, 1).Side(0).Delay(13),
	Set(DestY, 27).Side(1),
	Label("cutout"),
	Jmp(YDec, "cutout").Side(1).Delay(7),
	Set(DestPins, 0).Side(0).Delay(13),
)

// Motorola emits 8 cycles per bit: a one is 7 high + 1 low, a zero 1 high +
// 7 low. Out and set must address the same pin.
var Motorola = MustProgram("motorola", 0,
	Set(DestPins, 1),
	Out(DestPins, 1).Delay(5),
	Set(DestPins, 0),
)

// MFX emits 10 cycles per bit with a polarity change at the start of every
// bit and a second one mid-bit for a one.
var MFX = MustProgram("mfx", 0,
	Label("bitloop"),
	MovNot(DestY, SrcY),
	Mov(DestPins, SrcY),
	Out(DestX, 1),
	Jmp(XNotZero, "do_one"),
	Jmp(Always, "bitloop").Delay(5),
	Label("do_one"),
	MovNot(DestY, SrcY).Delay(1),
	Mov(DestPins, SrcY).Delay(3),
)

// MFXSync emits the half-sync pattern: polarity segments of 8, 4 and 9 cycles
// (80/40/90 µs at 100 kHz), repeated count+1 times.
var MFXSync = MustProgram("mfx_sync", 0,
	Out(DestX, MFXSyncCountWordWidth),
	Label("twice"),
	MovNot(DestY, SrcY),
	Mov(DestPins, SrcY).Delay(6),
	MovNot(DestY, SrcY),
	Mov(DestPins, SrcY).Delay(2),
	MovNot(DestY, SrcY),
	Mov(DestPins, SrcY).Delay(6),
	Jmp(XDec, "twice"),
)

// Profile is a program together with the configuration it was written for.
type Profile struct {
	Program *Program
	Config  Config
}

func serialConfig(freq float64, width int) Config {
	return Config{
		Frequency:     freq,
		WordWidth:     width,
		ShiftDir:      MSBFirst,
		Autopull:      true,
		PullThreshold: width,
		Join:          JoinTX,
	}
}

// SelectrixProfile drives clock on pin t0 and data on pin t1.
func SelectrixProfile(t0, t1 int) Profile {
	cfg := serialConfig(SelectrixFrequency, SelectrixWordWidth)
	cfg.OutBase, cfg.OutCount = t1, 1
	cfg.SideSetBase, cfg.SideSetCount = t0, 1
	return Profile{Program: Selectrix, Config: cfg}
}

// SelectrixDifferentialProfile drives clock on pin t0 and the symbol pair on
// pins data and data+1.
func SelectrixDifferentialProfile(t0, data int) Profile {
	cfg := serialConfig(SelectrixFrequency, SelectrixWordWidth)
	cfg.OutBase, cfg.OutCount = data, selectrixDifferentialSymbol
	cfg.SideSetBase, cfg.SideSetCount = t0, 1
	return Profile{Program: SelectrixDifferential, Config: cfg}
}

// DCCProfile drives the track signal on pin.
func DCCProfile(pin int) Profile {
	cfg := serialConfig(DCCFrequency, DCCWordWidth)
	cfg.SetBase, cfg.SetCount = pin, 1
	return Profile{Program: DCC, Config: cfg}
}

// DCCRailcomProfile drives the track signal on pin and the cutout on cutout.
func DCCRailcomProfile(pin, cutout int) Profile {
	cfg := serialConfig(DCCFrequency, DCCWordWidth)
	cfg.SetBase, cfg.SetCount = pin, 1
	cfg.SideSetBase, cfg.SideSetCount = cutout, 1
	return Profile{Program: DCCRailcom, Config: cfg}
}

// MotorolaProfile drives the track signal on pin at the loco or accessory
// rate.
func MotorolaProfile(pin int, accessory bool) Profile {
	freq := float64(MotorolaLocoFrequency)
	if accessory {
		freq = MotorolaAccessoryFrequency
	}
	cfg := serialConfig(freq, MotorolaWordWidth)
	cfg.SetBase, cfg.SetCount = pin, 1
	cfg.OutBase, cfg.OutCount = pin, 1
	return Profile{Program: Motorola, Config: cfg}
}

// MFXProfile drives the track signal on pin.
func MFXProfile(pin int) Profile {
	cfg := serialConfig(MFXFrequency, MFXWordWidth)
	cfg.OutBase, cfg.OutCount = pin, 1
	return Profile{Program: MFX, Config: cfg}
}

// MFXSyncProfile drives the half-sync pattern on pin.
func MFXSyncProfile(pin int) Profile {
	cfg := serialConfig(MFXFrequency, MFXSyncCountWordWidth)
	cfg.OutBase, cfg.OutCount = pin, 1
	return Profile{Program: MFXSync, Config: cfg}
}

// Load loads the profile through l.
func (p Profile) Load(l Loader) (Handle, error) {
	return l.Load(p.Program, p.Config)
}
