// Package bitscan provides CPU-feature-gated byte-level encoding helpers
// used on the numeric canonicalizer's hot path.
//
// The package probes for AVX2 once at init (the same way the teacher's ASCII
// detector does) and selects between two pure-Go encoders: a 4-nibble
// unrolled path when AVX2 is available (cheap to keep the branch predictor
// happy on wide integers) and a portable byte-at-a-time path otherwise. No
// assembly is involved; the CPU probe only chooses which Go loop runs.
package bitscan

import "golang.org/x/sys/cpu"

// hasAVX2 mirrors simd.hasAVX2 in the teacher repo: a package-level flag set
// once at init from the CPU feature bits, used to dispatch to the
// unrolled-by-4 path below.
var hasAVX2 = cpu.X86.HasAVX2

const hexDigits = "0123456789ABCDEF"

// EncodeHex renders v as an uppercase, zero-padded hex string of exactly
// width characters. v must fit in width*4 bits; higher bits are ignored.
func EncodeHex(v uint64, width int) string {
	if hasAVX2 {
		return encodeHexUnrolled(v, width)
	}
	return encodeHexPortable(v, width)
}

// encodeHexPortable emits one nibble at a time, most significant first.
func encodeHexPortable(v uint64, width int) string {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf)
}

// encodeHexUnrolled emits four nibbles per iteration. Functionally
// identical to encodeHexPortable; the unroll exists purely to reduce
// loop-carried dependency chains when AVX2 availability signals a modern,
// wide-pipeline CPU.
func encodeHexUnrolled(v uint64, width int) string {
	buf := make([]byte, width)
	i := width
	for i >= 4 {
		buf[i-1] = hexDigits[v&0xF]
		buf[i-2] = hexDigits[(v>>4)&0xF]
		buf[i-3] = hexDigits[(v>>8)&0xF]
		buf[i-4] = hexDigits[(v>>12)&0xF]
		v >>= 16
		i -= 4
	}
	for i > 0 {
		i--
		buf[i] = hexDigits[v&0xF]
		v >>= 4
	}
	return string(buf)
}
