package platform

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AssetOpener is the transport seam for HTTPDownloader: it opens a streaming
// reader over an asset URL and reports the total size (-1 when unknown).
// *github.Client satisfies this.
type AssetOpener interface {
	DownloadAsset(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// HTTPDownloader streams release assets to disk with percentage progress.
type HTTPDownloader struct {
	opener AssetOpener
}

// NewHTTPDownloader creates a Downloader over the given transport.
func NewHTTPDownloader(opener AssetOpener) *HTTPDownloader {
	return &HTTPDownloader{opener: opener}
}

// Download writes the asset at url to dest, creating parent directories as
// needed. Progress is reported in whole percent, never decreasing, ending at
// 100 on success. A partial file is removed on failure.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string, onProgress ProgressFunc) error {
	body, total, err := d.opener.DownloadAsset(ctx, url)
	if err != nil {
		return fmt.Errorf("opening asset stream: %w", err)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating download directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}

	written, copyErr := copyWithProgress(ctx, f, body, total, onProgress)
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(dest)
		return fmt.Errorf("downloading to %s: %w", dest, copyErr)
	}
	if closeErr != nil {
		os.Remove(dest)
		return fmt.Errorf("closing download file: %w", closeErr)
	}
	if total >= 0 && written != total {
		os.Remove(dest)
		return fmt.Errorf("downloading to %s: short read (%d of %d bytes)", dest, written, total)
	}

	if onProgress != nil {
		onProgress(100)
	}
	return nil
}

// copyWithProgress copies src to dst in chunks, checking ctx between chunks
// and emitting monotone percentage progress when the total size is known.
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, 128*1024)
	var written int64
	lastPercent := -1

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)

			if onProgress != nil && total > 0 {
				percent := int(written * 100 / total)
				if percent > 100 {
					percent = 100
				}
				if percent > lastPercent {
					lastPercent = percent
					onProgress(percent)
				}
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
