package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/japaniel/livyfreq/pkg/config"
)

// Read content with size limit to prevent OOM from misbehaving servers.
const maxBodySize = 10 * 1024 * 1024

// ErrDisallowed is returned when robots.txt forbids fetching a book page.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// DownloadReport lists the book ids that were fetched (or already present) and those that failed.
type DownloadReport struct {
	Succeeded []string
	Failed    []string
}

// Downloader fetches raw book pages with retry and a politeness delay.
type Downloader struct {
	Client        *http.Client
	BaseURL       string
	UserAgent     string
	Delay         time.Duration
	Retries       int
	RetryBackoff  time.Duration
	RespectRobots bool
	Logger        *logrus.Entry

	robots *robotstxt.RobotsData
}

// NewDownloader builds a Downloader from fetch configuration.
func NewDownloader(cfg config.FetchConfig, logger *logrus.Entry) *Downloader {
	if logger == nil {
		logger = logrus.WithField("component", "downloader")
	}
	return &Downloader{
		Client:        &http.Client{Timeout: cfg.Timeout},
		BaseURL:       cfg.BaseURL,
		UserAgent:     cfg.UserAgent,
		Delay:         cfg.Delay,
		Retries:       cfg.Retries,
		RetryBackoff:  cfg.RetryBackoff,
		RespectRobots: cfg.RespectRobots,
		Logger:        logger,
	}
}

// DownloadAll fetches every book into outDir. Files that already exist are skipped. A failed
// book is recorded in the report and does not stop the run; only context cancellation does.
func (d *Downloader) DownloadAll(ctx context.Context, books []Book, outDir string) (DownloadReport, error) {
	var report DownloadReport
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return report, fmt.Errorf("create raw directory: %w", err)
	}
	if d.RespectRobots {
		d.loadRobots(ctx)
	}

	for i, b := range books {
		fetched, err := d.Download(ctx, b, outDir)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			d.Logger.WithError(err).WithField("book_id", b.BookID).Warn("Download failed")
			report.Failed = append(report.Failed, b.BookID)
		} else {
			report.Succeeded = append(report.Succeeded, b.BookID)
		}

		// Rate limiting (skip delay for last item and for files already on disk)
		if fetched && i < len(books)-1 {
			if err := sleepCtx(ctx, d.Delay); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

// Download fetches one book unless its file already exists. fetched reports whether a network
// request was made.
func (d *Downloader) Download(ctx context.Context, b Book, outDir string) (fetched bool, err error) {
	dest := filepath.Join(outDir, RawFileName(b.BookID))
	if _, err := os.Stat(dest); err == nil {
		d.Logger.WithField("book_id", b.BookID).Debug("Already downloaded")
		return false, nil
	}

	pageURL, err := d.resolve(b.URLPath)
	if err != nil {
		return false, err
	}
	if d.robots != nil && !d.robots.TestAgent(pageURL.Path, d.UserAgent) {
		return false, fmt.Errorf("%s: %w", pageURL, ErrDisallowed)
	}

	var body []byte
	for attempt := 1; attempt <= d.Retries; attempt++ {
		body, err = d.fetch(ctx, pageURL.String())
		if err == nil {
			break
		}
		d.Logger.WithError(err).WithFields(logrus.Fields{"book_id": b.BookID, "attempt": attempt}).Debug("Fetch attempt failed")
		if attempt < d.Retries {
			if serr := sleepCtx(ctx, time.Duration(attempt)*d.RetryBackoff); serr != nil {
				return true, serr
			}
		}
	}
	if err != nil {
		return true, fmt.Errorf("fetch %s after %d attempts: %w", b.BookID, d.Retries, err)
	}

	// Write to a temp file first so an interrupted run never leaves a truncated page behind.
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return true, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return true, fmt.Errorf("rename %s: %w", tmp, err)
	}
	d.Logger.WithFields(logrus.Fields{"book_id": b.BookID, "bytes": len(body)}).Info("Downloaded")
	return true, nil
}

func (d *Downloader) resolve(path string) (*url.URL, error) {
	base, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse book path %q: %w", path, err)
	}
	return base.ResolveReference(ref), nil
}

func (d *Downloader) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}
	if resp.ContentLength > int64(maxBodySize) {
		return nil, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, fmt.Errorf("response body exceeded maximum size limit of %d bytes", maxBodySize)
	}
	return body, nil
}

// loadRobots fetches robots.txt once per run. Any failure allows all requests.
func (d *Downloader) loadRobots(ctx context.Context) {
	robotsURL, err := d.resolve("/robots.txt")
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", d.UserAgent)
	resp, err := d.Client.Do(req)
	if err != nil {
		d.Logger.WithError(err).Warn("Failed to get robots.txt, allowing requests")
		return
	}
	defer resp.Body.Close()
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		d.Logger.WithError(err).Warn("Failed to parse robots.txt, allowing requests")
		return
	}
	d.robots = data
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
