package store

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/railsig/internal/snapshot"
)

// marshalMap converts a string map to canonical JSON TEXT for storage.
func marshalMap(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := snapshot.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal map: %w", err)
	}
	return string(data), nil
}

// unmarshalMap parses canonical JSON TEXT to a string map.
func unmarshalMap(data string) (map[string]string, error) {
	m := map[string]string{}
	if data == "" || data == "{}" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("unmarshal map: %w", err)
	}
	return m, nil
}

// marshalState encodes a State as a msgpack BLOB.
func marshalState(st State) ([]byte, error) {
	data, err := msgpack.Marshal(&st)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return data, nil
}

func unmarshalState(data []byte) (State, error) {
	var st State
	if err := msgpack.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return st, nil
}

// marshalWords encodes frame words as a msgpack BLOB.
func marshalWords(words []uint32) ([]byte, error) {
	data, err := msgpack.Marshal(words)
	if err != nil {
		return nil, fmt.Errorf("marshal words: %w", err)
	}
	return data, nil
}

func unmarshalWords(data []byte) ([]uint32, error) {
	var words []uint32
	if err := msgpack.Unmarshal(data, &words); err != nil {
		return nil, fmt.Errorf("unmarshal words: %w", err)
	}
	if words == nil {
		words = []uint32{}
	}
	return words, nil
}
