package store

// Session is one run of a transmitter.
type Session struct {
	ID            string
	Protocol      string
	Encoder       map[string]string
	Labels        map[string]string
	EngineVersion string
}

// State is the transmitter state a frame was built from.
type State struct {
	Channels []uint8 `msgpack:"c"`
	Power    bool    `msgpack:"p"`
}

// Rebuild records one successful frame rebuild.
type Rebuild struct {
	SessionID  string
	Generation int64
	Digest     string
	State      State
	Words      []uint32
}
