package audio

import (
	"encoding/base64"
	"encoding/binary"
	"testing"
)

func TestDecodeOneSecondOfSilence(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(make([]byte, SampleRate*2))

	samples, err := DecodePCM16Base64(payload)
	if err != nil {
		t.Fatalf("DecodePCM16Base64 err: %v", err)
	}
	if len(samples) != 24000 {
		t.Fatalf("expected 24000 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("sample %d = %f, want 0", i, s)
		}
	}
}

func TestDecodePCM16Range(t *testing.T) {
	data := make([]byte, 7)
	binary.LittleEndian.PutUint16(data[0:], uint16(0x7fff))
	binary.LittleEndian.PutUint16(data[2:], 0x8000)
	binary.LittleEndian.PutUint16(data[4:], uint16(16384))

	samples := DecodePCM16(data)
	if len(samples) != 3 {
		t.Fatalf("expected trailing odd byte to be ignored, got %d samples", len(samples))
	}
	if samples[0] <= 0.999 || samples[0] > 1 {
		t.Fatalf("max sample out of range: %f", samples[0])
	}
	if samples[1] != -1 {
		t.Fatalf("min sample = %f, want -1", samples[1])
	}
	if samples[2] != 0.5 {
		t.Fatalf("half sample = %f, want 0.5", samples[2])
	}
}

func TestDecodePCM16Base64RejectsGarbage(t *testing.T) {
	if _, err := DecodePCM16Base64("%%%not-base64"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEncodeDecodeKeepsSamples(t *testing.T) {
	in := []float32{0, 0.5, -0.5, -1}
	out, err := DecodePCM16Base64(EncodePCM16Base64(in))
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d = %f, want %f", i, out[i], in[i])
		}
	}
}

func TestSampleRateFromMIME(t *testing.T) {
	rate, ok := SampleRateFromMIME("audio/L16;codec=pcm;rate=24000")
	if !ok || rate != 24000 {
		t.Fatalf("unexpected rate %d ok=%v", rate, ok)
	}
	if _, ok := SampleRateFromMIME("audio/wav"); ok {
		t.Fatal("expected no rate for plain mime type")
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	wav := EncodeWAV(make([]float32, 10), SampleRate)
	if len(wav) != 44+20 {
		t.Fatalf("unexpected wav length %d", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("unexpected wav chunk ids: %q", wav[:40])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != SampleRate {
		t.Fatalf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 20 {
		t.Fatalf("data size = %d, want 20", got)
	}
}
