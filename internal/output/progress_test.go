package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressBar_Basic(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(100, "myapp.tar.gz")
	p.SetWriter(buf)

	p.render()
	output := buf.String()

	// Non-TTY renders only at completion.
	if output != "" {
		t.Errorf("non-TTY render before completion should be silent, got: %q", output)
	}

	p.SetCurrent(100)
	output = buf.String()
	if !strings.Contains(output, "[") || !strings.Contains(output, "]") {
		t.Errorf("progress bar should contain brackets, got: %q", output)
	}
	if !strings.Contains(output, "100%") {
		t.Errorf("completed bar should show 100%%, got: %q", output)
	}
	if !strings.Contains(output, "myapp.tar.gz") {
		t.Errorf("progress bar should contain description, got: %q", output)
	}
}

func TestProgressBar_SetCurrentClamps(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(100, "clamped")
	p.SetWriter(buf)

	p.SetCurrent(250)
	output := buf.String()
	if !strings.Contains(output, "100%") {
		t.Errorf("overshoot should clamp to 100%%, got: %q", output)
	}
}

func TestProgressBar_FinishOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(100, "done")
	p.SetWriter(buf)

	p.SetCurrent(100)
	p.Finish()
	output := buf.String()

	// The 100% line must appear exactly once on a non-TTY writer.
	if got := strings.Count(output, "100%"); got != 1 {
		t.Errorf("expected one completion line, got %d in %q", got, output)
	}
}

func TestProgressBar_FinishFromPartial(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewProgress(100, "partial")
	p.SetWriter(buf)

	p.SetCurrent(40)
	p.Finish()
	output := buf.String()

	if got := strings.Count(output, "100%"); got != 1 {
		t.Errorf("expected one completion line, got %d in %q", got, output)
	}
}

func TestDownloadBar(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewDownloadBar("myapp_2.0.0_linux_amd64.tar.gz")
	p.SetWriter(buf)

	// Drive it the way a pipeline progress callback would.
	for _, pct := range []int{10, 55, 100} {
		p.SetCurrent(pct)
	}
	output := buf.String()

	if !strings.Contains(output, "100%") {
		t.Errorf("expected completion output, got: %q", output)
	}
	if !strings.Contains(output, "myapp_2.0.0_linux_amd64.tar.gz") {
		t.Errorf("expected asset name, got: %q", output)
	}
}

func TestSpinner_NonTTY(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Checking for updates")
	s.SetWriter(buf)

	s.Start()
	s.Stop()
	output := buf.String()

	// Non-TTY prints the message once, no animation frames.
	if !strings.Contains(output, "Checking for updates...") {
		t.Errorf("expected message printed once, got: %q", output)
	}
	if strings.Contains(output, "\r") {
		t.Errorf("non-TTY output should not contain carriage returns, got: %q", output)
	}
}

func TestSpinner_StopWithMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Working")
	s.SetWriter(buf)

	s.Start()
	s.StopWithMessage("2 updates available")
	output := buf.String()

	if !strings.Contains(output, "2 updates available") {
		t.Errorf("expected final message, got: %q", output)
	}
}

func TestSpinner_DoubleStartStop(t *testing.T) {
	buf := &bytes.Buffer{}
	s := NewSpinner("Once")
	s.SetWriter(buf)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	if got := strings.Count(buf.String(), "Once..."); got != 1 {
		t.Errorf("expected single start message, got %d in %q", got, buf.String())
	}
}
