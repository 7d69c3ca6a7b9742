// internal/download/engine.go
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/kuaigrab/kuaigrab/internal/errors"
	"github.com/kuaigrab/kuaigrab/internal/extract"
	"github.com/kuaigrab/kuaigrab/internal/monitoring"
	"github.com/kuaigrab/kuaigrab/internal/utils"
)

// Config defines the download policy: destination layout, chunking, retry
// budget, and the worker bound shared across all tasks.
type Config struct {
	DownloadDir   string
	TempDir       string
	ChunkSize     int
	MaxWorkers    int
	RetryAttempts int
	RetryDelay    time.Duration
	Proxy         string
	Headers       map[string]string
}

// Job is one content item to download: a single video file or the full file
// set of a gallery.
type Job struct {
	ContentID string
	// BaseName is the human-derived filename base (publish time, author,
	// caption); it is sanitized before use.
	BaseName string
	Type     extract.ContentType
	URLs     []string
}

// Engine performs chunked media downloads with a bounded worker pool. The
// pool is shared across tasks; there is no per-task fairness, so a large
// gallery can delay later tasks.
type Engine struct {
	client  *http.Client
	workers chan struct{}
	config  Config
	logger  utils.Logger
	metrics *monitoring.Metrics
}

// NewEngine creates a download engine. The HTTP client carries no overall
// timeout since media files can take minutes; every request still honors its
// context.
func NewEngine(config Config, logger utils.Logger, metrics *monitoring.Metrics) (*Engine, error) {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	if config.ChunkSize < 1 {
		config.ChunkSize = 2 * 1024 * 1024
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", config.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Engine{
		client:  &http.Client{Transport: transport},
		workers: make(chan struct{}, config.MaxWorkers),
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Download fetches every file of the job and returns the result path: the
// file itself for a video, the destination directory for a gallery. Failed
// gallery downloads leave already-completed files in place; the failure is
// reported at the task level.
func (e *Engine) Download(ctx context.Context, job Job) (string, error) {
	if len(job.URLs) == 0 {
		return "", &apperrors.DownloadError{URL: "", Attempts: 0, Err: fmt.Errorf("no media URLs for %s", job.ContentID)}
	}

	name := SanitizeName(job.BaseName, job.ContentID)

	if job.Type == extract.ContentTypeImage {
		if err := e.downloadGallery(ctx, name, job.URLs); err != nil {
			return "", err
		}
		return e.config.DownloadDir, nil
	}

	dest := filepath.Join(e.config.DownloadDir, name+fileExt(job.URLs[0], ".mp4"))
	if err := e.downloadFile(ctx, job.URLs[0], dest); err != nil {
		return "", err
	}
	return dest, nil
}

// downloadGallery fans the image fetches out through the shared worker pool
// and waits for all of them, reporting the first error.
func (e *Engine) downloadGallery(ctx context.Context, name string, urls []string) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for i, fileURL := range urls {
		dest := filepath.Join(e.config.DownloadDir,
			fmt.Sprintf("%s_%02d%s", name, i+1, fileExt(fileURL, ".jpg")))

		wg.Add(1)
		go func(fileURL, dest string) {
			defer wg.Done()
			if err := e.downloadFile(ctx, fileURL, dest); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(fileURL, dest)
	}

	wg.Wait()
	return firstErr
}

// downloadFile fetches one media file with per-file retries: stream the body
// in chunk-sized reads into a temp file, then rename into place. An existing
// destination is treated as already downloaded.
func (e *Engine) downloadFile(ctx context.Context, fileURL, dest string) error {
	select {
	case e.workers <- struct{}{}:
		defer func() { <-e.workers }()
	case <-ctx.Done():
		return ctx.Err()
	}

	if _, err := os.Stat(dest); err == nil {
		e.logger.Debugf("skipping existing file %s", dest)
		return nil
	}

	var lastErr error
	for attempt := 0; attempt <= e.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := e.config.RetryDelay * time.Duration(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				e.metrics.ObserveDownload(false, 0)
				return &apperrors.DownloadError{URL: fileURL, Attempts: attempt, Err: ctx.Err()}
			}
		}

		written, err := e.fetchOnce(ctx, fileURL, dest)
		if err == nil {
			e.metrics.ObserveDownload(true, written)
			e.logger.Infof("downloaded %s (%d bytes)", dest, written)
			return nil
		}
		lastErr = err
		e.logger.Warnf("download attempt %d/%d failed for %s: %v",
			attempt+1, e.config.RetryAttempts+1, fileURL, err)
	}

	e.metrics.ObserveDownload(false, 0)
	return &apperrors.DownloadError{URL: fileURL, Attempts: e.config.RetryAttempts + 1, Err: lastErr}
}

func (e *Engine) fetchOnce(ctx context.Context, fileURL, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range e.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	temp := filepath.Join(e.config.TempDir, filepath.Base(dest)+".part")
	out, err := os.Create(temp)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	buf := make([]byte, e.config.ChunkSize)
	written, err := io.CopyBuffer(out, resp.Body, buf)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(temp)
		return 0, fmt.Errorf("failed to write %s: %w", temp, err)
	}

	if err := os.Rename(temp, dest); err != nil {
		os.Remove(temp)
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return written, nil
}

// fileExt returns the media URL's file extension, or the fallback when the
// URL path has none.
func fileExt(fileURL, fallback string) string {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return fallback
	}
	if ext := path.Ext(parsed.Path); ext != "" && len(ext) <= 5 {
		return ext
	}
	return fallback
}
