package dmxsink

import (
	"errors"
	"testing"
)

type erroringSink struct{ err error }

func (e erroringSink) WriteFrame(port string, data *[512]byte) error { return e.err }

func TestNopSinkDiscards(t *testing.T) {
	var data [512]byte
	if err := (NopSink{}).WriteFrame("1", &data); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestLogSinkNeverErrors(t *testing.T) {
	var data [512]byte
	data[0] = 255
	if err := (LogSink{}).WriteFrame("1", &data); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestMultiSinkFansOutToAll(t *testing.T) {
	var calls int
	track := trackingSink(&calls)
	m := MultiSink{Sinks: []Sink{track, track, track}}

	var data [512]byte
	if err := m.WriteFrame("1", &data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected all 3 sinks to be called, got %d", calls)
	}
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	errA := errors.New("sink a failed")
	errB := errors.New("sink b failed")
	m := MultiSink{Sinks: []Sink{erroringSink{errA}, erroringSink{errB}}}

	var data [512]byte
	if err := m.WriteFrame("1", &data); err != errA {
		t.Fatalf("expected first error %v, got %v", errA, err)
	}
}

func trackingSink(calls *int) Sink {
	return trackFunc(func() { *calls++ })
}

type trackFunc func()

func (f trackFunc) WriteFrame(port string, data *[512]byte) error {
	f()
	return nil
}
