package selectrix

import (
	"fmt"

	"github.com/roach88/railsig/internal/engine"
	"github.com/roach88/railsig/internal/store"
)

// Protocol is the journal protocol name of selectrix sessions.
const Protocol = "selectrix"

// Settings returns the encoder in the key/value form stored with journal
// sessions.
func (e Encoder) Settings() map[string]string {
	return map[string]string{
		"variant": e.Variant.String(),
		"address": e.Address.String(),
	}
}

// ParseSettings is the inverse of Settings.
func ParseSettings(m map[string]string) (Encoder, error) {
	variant, err := ParseVariant(m["variant"])
	if err != nil {
		return Encoder{}, err
	}
	addr, err := ParseAddressMode(m["address"])
	if err != nil {
		return Encoder{}, err
	}
	return Encoder{Variant: variant, Address: addr}, nil
}

// NewSession describes a journal session for a transmitter using enc.
func NewSession(id string, enc Encoder, labels map[string]string) store.Session {
	return store.Session{
		ID:            id,
		Protocol:      Protocol,
		Encoder:       enc.Settings(),
		Labels:        labels,
		EngineVersion: engine.Version,
	}
}

// Record pairs a rebuilt frame with the state it was built from. Call it
// from the rebuild hook, where Built still describes f.
func (t *Transmitter) Record(sessionID string, f engine.Frame) store.Rebuild {
	table, power := t.Built()
	return store.Rebuild{
		SessionID:  sessionID,
		Generation: f.Generation,
		Digest:     f.Digest,
		State:      store.State{Channels: table[:], Power: power},
		Words:      f.Words,
	}
}

// Replay re-encodes a journaled state. It has the signature of
// store.EncodeFunc.
func Replay(sess store.Session, st store.State) ([]uint32, error) {
	if sess.Protocol != Protocol {
		return nil, fmt.Errorf("selectrix: cannot replay %s session", sess.Protocol)
	}
	enc, err := ParseSettings(sess.Encoder)
	if err != nil {
		return nil, err
	}
	if len(st.Channels) != Channels {
		return nil, fmt.Errorf("selectrix: journaled table has %d channels, want %d", len(st.Channels), Channels)
	}
	var table ChannelTable
	copy(table[:], st.Channels)
	return enc.Build(&table, st.Power)
}
