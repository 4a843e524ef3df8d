package bitstream

import "fmt"

// MaxWordWidth is the widest word the automaton input queue accepts.
const MaxWordWidth = 32

// chunkBits returns how many stream bits fit in one word of the given width
// when the stream is made of symbolBits-wide symbols.
func chunkBits(wordWidth, symbolBits int) (int, error) {
	if wordWidth < 1 || wordWidth > MaxWordWidth {
		return 0, fmt.Errorf("bitstream: word width %d out of range 1..%d", wordWidth, MaxWordWidth)
	}
	if symbolBits < 1 || symbolBits > wordWidth {
		return 0, fmt.Errorf("bitstream: symbol width %d out of range 1..%d", symbolBits, wordWidth)
	}
	if wordWidth%symbolBits != 0 {
		return 0, fmt.Errorf("bitstream: word width %d is not a multiple of symbol width %d", wordWidth, symbolBits)
	}
	return wordWidth, nil
}

// Pack splits bits into contiguous chunks, one chunk per word. The first bit of
// a chunk occupies bit wordWidth-1 of its word and later bits move towards bit
// 0. An incomplete trailing chunk is zero padded in the low-order bits.
//
// symbolBits groups the stream into multi-bit symbols (2 for the polarity
// symbols of differential outputs); a symbol never straddles two words. The
// stream length is expected to be a multiple of symbolBits.
func Pack(bits Stream, wordWidth, symbolBits int) ([]uint32, error) {
	n, err := chunkBits(wordWidth, symbolBits)
	if err != nil {
		return nil, err
	}
	if len(bits)%symbolBits != 0 {
		return nil, fmt.Errorf("bitstream: %d bits is not a whole number of %d-bit symbols", len(bits), symbolBits)
	}

	words := make([]uint32, 0, (len(bits)+n-1)/n)
	for i := 0; i < len(bits); i += n {
		var w uint32
		end := i + n
		if end > len(bits) {
			end = len(bits)
		}
		for j, b := range bits[i:end] {
			if b != 0 {
				w |= 1 << uint(wordWidth-1-j)
			}
		}
		words = append(words, w)
	}
	return words, nil
}

// MustPack is Pack for widths known to be valid at compile time.
func MustPack(bits Stream, wordWidth, symbolBits int) []uint32 {
	words, err := Pack(bits, wordWidth, symbolBits)
	if err != nil {
		panic(err)
	}
	return words
}

// Unpack reverses Pack. The result includes any zero padding of the last word,
// so it is len(words)*wordWidth bits long.
func Unpack(words []uint32, wordWidth, symbolBits int) (Stream, error) {
	n, err := chunkBits(wordWidth, symbolBits)
	if err != nil {
		return nil, err
	}
	out := make(Stream, 0, len(words)*n)
	for _, w := range words {
		for j := 0; j < n; j++ {
			out = append(out, Bit((w>>uint(wordWidth-1-j))&1))
		}
	}
	return out, nil
}
