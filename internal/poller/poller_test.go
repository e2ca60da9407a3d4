package poller

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/internal/monitor"
	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

type fakeInstrument struct {
	voltage map[protocol.Channel]string
	current map[protocol.Channel]string
	err     error
	queries int
}

func (f *fakeInstrument) ActualVoltage(ch protocol.Channel) (string, error) {
	f.queries++
	if f.err != nil {
		return "", f.err
	}
	return f.voltage[ch], nil
}

func (f *fakeInstrument) ActualCurrent(ch protocol.Channel) (string, error) {
	f.queries++
	if f.err != nil {
		return "", f.err
	}
	return f.current[ch], nil
}

type fakePublisher struct {
	batches [][]*protocol.Reading
	err     error
}

func (f *fakePublisher) PublishBatch(_ context.Context, readings []*protocol.Reading) error {
	f.batches = append(f.batches, readings)
	return f.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newInstrument() *fakeInstrument {
	return &fakeInstrument{
		voltage: map[protocol.Channel]string{1: "U1:06.90V\r\n", 2: "U2:23.10V\r\n"},
		current: map[protocol.Channel]string{1: "I1:00.41A\r\n", 2: "garbage\r\n"},
	}
}

func TestPollOnce(t *testing.T) {
	inst := newInstrument()
	pub := &fakePublisher{}
	p := New(inst, pub, quietLogger(), "hm8143", time.Second)

	errorsBefore := testutil.ToFloat64(monitor.PollErrors)
	readings, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if inst.queries != 4 {
		t.Errorf("queries = %d, want 4", inst.queries)
	}
	if len(readings) != 3 {
		t.Fatalf("readings = %d, want 3", len(readings))
	}
	if len(pub.batches) != 1 || len(pub.batches[0]) != 3 {
		t.Fatalf("published batches = %v, want one batch of 3", pub.batches)
	}
	if pub.batches[0][2].Channel != 2 || pub.batches[0][2].Value != 23.1 {
		t.Errorf("last published reading = %+v", pub.batches[0][2])
	}
	if got := testutil.ToFloat64(monitor.PollErrors) - errorsBefore; got != 1 {
		t.Errorf("poll errors += %v, want 1", got)
	}
	if r := readings[0]; r.Channel != 1 || r.Quantity != protocol.QuantityVoltage || r.Value != 6.9 {
		t.Errorf("first reading = %+v", r)
	}
	if v := testutil.ToFloat64(monitor.ChannelReading.WithLabelValues("2", "voltage", "actual")); v != 23.1 {
		t.Errorf("CH2 voltage gauge = %v", v)
	}
}

func TestPollOnceStopsOnTransportError(t *testing.T) {
	boom := &protocol.TransportError{Op: "读取", Err: errors.New("port gone")}
	inst := &fakeInstrument{err: boom}
	p := New(inst, nil, quietLogger(), "hm8143", time.Second)
	if _, err := p.PollOnce(context.Background()); err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if inst.queries != 1 {
		t.Errorf("queries = %d after fatal error", inst.queries)
	}
}

func TestPollOnceSkipsTimeouts(t *testing.T) {
	inst := &fakeInstrument{err: &protocol.TransportError{Op: "读取", Err: protocol.ErrTimeout}}
	pub := &fakePublisher{}
	p := New(inst, pub, quietLogger(), "hm8143", time.Second)
	readings, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(readings) != 0 || inst.queries != 4 {
		t.Errorf("readings = %d, queries = %d", len(readings), inst.queries)
	}
	if len(pub.batches) != 0 {
		t.Errorf("empty round published: %v", pub.batches)
	}
}

func TestPollOnceIgnoresPublishErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	p := New(newInstrument(), pub, quietLogger(), "hm8143", time.Second)
	readings, err := p.PollOnce(context.Background())
	if err != nil {
		t.Fatalf("publish error stopped polling: %v", err)
	}
	if len(readings) != 3 || len(pub.batches) != 1 {
		t.Errorf("readings = %d, batches = %d", len(readings), len(pub.batches))
	}
}

func TestRunPublishesEachRound(t *testing.T) {
	pub := &fakePublisher{}
	p := New(newInstrument(), pub, quietLogger(), "hm8143", 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(pub.batches) < 2 {
		t.Fatalf("batches = %d, want at least two rounds", len(pub.batches))
	}
	for i, b := range pub.batches {
		if len(b) != 3 {
			t.Errorf("batch %d has %d readings, want 3", i, len(b))
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	inst := newInstrument()
	p := New(inst, nil, quietLogger(), "hm8143", 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if inst.queries < 8 {
		t.Errorf("queries = %d, want at least two rounds", inst.queries)
	}
}
