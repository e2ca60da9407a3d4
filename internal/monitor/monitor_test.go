package monitor

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/timengelbracht/Hameg-HM8143/pkg/protocol"
)

type stubTransport struct {
	line     string
	writeErr error
	readErr  error
}

func (s *stubTransport) Write(p []byte) error { return s.writeErr }

func (s *stubTransport) ReadLine(time.Duration) (string, error) {
	if s.readErr != nil {
		return "", s.readErr
	}
	return s.line, nil
}

func (s *stubTransport) Close() error { return nil }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestInstrumentedTransportCountsWrites(t *testing.T) {
	tr := Instrument(&stubTransport{}, quietLogger())

	before := testutil.ToFloat64(CommandsSent.WithLabelValues("SU"))
	bytesBefore := testutil.ToFloat64(BytesWritten)
	if err := tr.Write([]byte("SU1:06.90")); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(CommandsSent.WithLabelValues("SU")) - before; got != 1 {
		t.Errorf("SU commands += %v, want 1", got)
	}
	if got := testutil.ToFloat64(BytesWritten) - bytesBefore; got != 9 {
		t.Errorf("bytes written += %v, want 9", got)
	}
}

func TestInstrumentedTransportPassesErrorsThrough(t *testing.T) {
	boom := errors.New("port gone")
	tr := Instrument(&stubTransport{writeErr: boom}, quietLogger())
	before := testutil.ToFloat64(TransportErrors.WithLabelValues("write"))
	if err := tr.Write([]byte("RM1")); err != boom {
		t.Fatalf("err = %v", err)
	}
	if got := testutil.ToFloat64(TransportErrors.WithLabelValues("write")) - before; got != 1 {
		t.Errorf("write errors += %v", got)
	}

	timeout := &protocol.TransportError{Op: "读取", Err: protocol.ErrTimeout}
	tr = Instrument(&stubTransport{readErr: timeout}, quietLogger())
	timeoutsBefore := testutil.ToFloat64(ReadTimeouts)
	if _, err := tr.ReadLine(time.Millisecond); err != timeout {
		t.Fatalf("err = %v", err)
	}
	if got := testutil.ToFloat64(ReadTimeouts) - timeoutsBefore; got != 1 {
		t.Errorf("timeouts += %v", got)
	}
}

func TestInstrumentedTransportReadLine(t *testing.T) {
	tr := Instrument(&stubTransport{line: "HM8143\r\n"}, quietLogger())
	before := testutil.ToFloat64(BytesRead)
	line, err := tr.ReadLine(time.Second)
	if err != nil || line != "HM8143\r\n" {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}
	if got := testutil.ToFloat64(BytesRead) - before; got != 8 {
		t.Errorf("bytes read += %v, want 8", got)
	}
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	m := NewMonitor(quietLogger())
	NewMonitor(quietLogger())

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("/health = %d %q", resp.StatusCode, body)
	}

	CommandsSent.WithLabelValues("ID?").Inc()
	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "hm8143_commands_sent_total") {
		t.Error("/metrics does not expose hm8143_commands_sent_total")
	}
}

func TestRuntimeMonitorStops(t *testing.T) {
	m := NewMonitor(quietLogger())
	stop := m.StartRuntimeMonitor(time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stop()
	stop()
	if testutil.ToFloat64(GoroutineCount) < 1 {
		t.Error("goroutine gauge not updated")
	}
}
