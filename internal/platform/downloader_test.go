package platform

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeOpener struct {
	data string
	size int64 // reported content length; -1 for unknown
	err  error
}

func (f *fakeOpener) DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return io.NopCloser(strings.NewReader(f.data)), f.size, nil
}

// errReader fails after yielding some bytes, simulating a dropped transport.
type errReader struct {
	data string
	read bool
}

func (r *errReader) Read(p []byte) (int, error) {
	if !r.read {
		r.read = true
		return copy(p, r.data), nil
	}
	return 0, errors.New("connection reset")
}

func (r *errReader) Close() error { return nil }

type errOpener struct{ r *errReader }

func (o *errOpener) DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	return o.r, int64(len(o.r.data)) * 2, nil
}

// TestDownload_WritesFileAndReportsProgress verifies the payload lands at the
// destination and progress is monotone, ending at 100.
func TestDownload_WritesFileAndReportsProgress(t *testing.T) {
	payload := strings.Repeat("a", 300*1024)
	d := NewHTTPDownloader(&fakeOpener{data: payload, size: int64(len(payload))})

	dest := filepath.Join(t.TempDir(), "out.bin")
	var percents []int
	err := d.Download(context.Background(), "http://x/asset", dest, func(p int) {
		percents = append(percents, p)
	})
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading dest: %v", err)
	}
	if len(got) != len(payload) {
		t.Errorf("wrote %d bytes, want %d", len(got), len(payload))
	}

	if len(percents) == 0 {
		t.Fatal("no progress reported")
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Fatalf("progress decreased: %v", percents)
		}
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("final progress = %d, want 100", percents[len(percents)-1])
	}
}

// TestDownload_TransportErrorRemovesPartial verifies a mid-stream failure
// leaves no partial file behind.
func TestDownload_TransportErrorRemovesPartial(t *testing.T) {
	d := NewHTTPDownloader(&errOpener{r: &errReader{data: "partial"}})

	dest := filepath.Join(t.TempDir(), "out.bin")
	err := d.Download(context.Background(), "http://x/asset", dest, nil)
	if err == nil {
		t.Fatal("Download() should fail on transport error")
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Errorf("partial file left behind at %s", dest)
	}
}

// TestDownload_ShortReadFails verifies a stream shorter than the declared
// content length is rejected.
func TestDownload_ShortReadFails(t *testing.T) {
	d := NewHTTPDownloader(&fakeOpener{data: "abc", size: 1000})

	dest := filepath.Join(t.TempDir(), "out.bin")
	err := d.Download(context.Background(), "http://x/asset", dest, nil)
	if err == nil || !strings.Contains(err.Error(), "short read") {
		t.Fatalf("error = %v, want short read failure", err)
	}
}

// TestDownload_Cancelled verifies context cancellation aborts the copy.
func TestDownload_Cancelled(t *testing.T) {
	payload := strings.Repeat("a", 1024*1024)
	d := NewHTTPDownloader(&fakeOpener{data: payload, size: int64(len(payload))})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "out.bin")
	err := d.Download(ctx, "http://x/asset", dest, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
