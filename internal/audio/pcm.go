// Package audio converts between the PCM16 payloads returned by speech
// synthesis and normalized float samples.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Speech synthesis output format: 24 kHz, mono, signed 16-bit little-endian.
const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16
)

// DecodePCM16 converts little-endian 16-bit samples to floats in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return samples
}

// DecodePCM16Base64 decodes a base64 PCM16 payload into float samples.
func DecodePCM16Base64(payload string) ([]float32, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("decode pcm payload: %w", err)
	}
	return DecodePCM16(data), nil
}

// EncodePCM16 converts float samples back to little-endian 16-bit PCM, clamping to [-1, 1].
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

// EncodePCM16Base64 is EncodePCM16 followed by standard base64.
func EncodePCM16Base64(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16(samples))
}

// SampleRateFromMIME extracts the rate parameter from types like "audio/L16;codec=pcm;rate=24000".
func SampleRateFromMIME(mimeType string) (int, bool) {
	for _, param := range strings.Split(mimeType, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(key, "rate") {
			continue
		}
		rate, err := strconv.Atoi(value)
		if err != nil || rate <= 0 {
			return 0, false
		}
		return rate, true
	}
	return 0, false
}

func toInt16(s float32) int16 {
	v := math.Round(float64(s) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
