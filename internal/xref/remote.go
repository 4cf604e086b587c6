package xref

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/docweave/internal/logfields"
	"git.home.luguber.info/inful/docweave/internal/metrics"
	"git.home.luguber.info/inful/docweave/internal/parallel"
	"git.home.luguber.info/inful/docweave/internal/retry"
)

// maxMapBytes bounds a downloaded reference map.
const maxMapBytes = 256 << 20

// ErrMapTooLarge reports a download that exceeds the size limit.
var ErrMapTooLarge = errors.New("reference map too large")

// BlobCache stores downloaded container payloads between builds.
type BlobCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
}

// RemoteContainer downloads a map or archive over HTTP. Each attempt is
// bounded by Timeout and failed attempts are retried per Policy.
type RemoteContainer struct {
	name          string
	url           string
	Client        *http.Client
	Timeout       time.Duration
	Policy        retry.Policy
	Cache         BlobCache
	Throttle      *parallel.Throttle
	Recorder      metrics.Recorder
	ShardCapacity int
	// MaxBytes bounds the download; non-positive selects 256 MiB.
	MaxBytes int64
	Logger   *slog.Logger
}

// NewRemoteContainer creates a container for rawURL with default settings.
func NewRemoteContainer(name, rawURL string) *RemoteContainer {
	return &RemoteContainer{
		name:    name,
		url:     rawURL,
		Client:  http.DefaultClient,
		Timeout: 30 * time.Second,
		Policy:  retry.DefaultPolicy(),
	}
}

func (c *RemoteContainer) Name() string { return c.name }

// URL returns the download location.
func (c *RemoteContainer) URL() string { return c.url }

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("unexpected HTTP status %d", e.code) }

func retryableDownload(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrMapTooLarge)
}

func (c *RemoteContainer) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *RemoteContainer) Open(ctx context.Context) (Source, error) {
	data, err := c.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContainerUnavailable, c.name, err)
	}
	if c.isArchive() {
		src, err := OpenArchiveBytes(c.name, data, c.ShardCapacity, c.Recorder)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrContainerUnavailable, c.name, err)
		}
		return src, nil
	}
	m, err := ParseMap(data, c.format())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrContainerUnavailable, c.name, err)
	}
	if m.BaseURL == "" && !m.HrefUpdated {
		m.BaseURL = baseOf(c.url)
	}
	return NewMapSource(m), nil
}

func (c *RemoteContainer) fetch(ctx context.Context) ([]byte, error) {
	if c.Cache != nil {
		data, ok, err := c.Cache.Get(ctx, c.url)
		switch {
		case err != nil:
			c.logger().Warn("Reference map cache read failed", logfields.Container(c.name), logfields.Error(err))
		case ok:
			c.logger().Debug("Reference map served from cache", logfields.Container(c.name), logfields.URL(c.url))
			return data, nil
		}
	}

	var data []byte
	err := c.Policy.Do(ctx, func(ctx context.Context, _ int) error {
		return c.Throttle.Do(ctx, parallel.NetworkIO, func(ctx context.Context) error {
			var derr error
			data, derr = c.download(ctx)
			return derr
		})
	}, retryableDownload, func(attempt int, err error) {
		c.logger().Warn("Retrying reference map download",
			logfields.Container(c.name), logfields.URL(c.url), logfields.Attempt(attempt), logfields.Error(err))
	})
	if err != nil {
		return nil, err
	}

	if c.Cache != nil {
		if perr := c.Cache.Put(ctx, c.url, data); perr != nil {
			c.logger().Warn("Reference map cache write failed", logfields.Container(c.name), logfields.Error(perr))
		}
	}
	return data, nil
}

func (c *RemoteContainer) download(ctx context.Context) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}
	limit := c.MaxBytes
	if limit <= 0 {
		limit = maxMapBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrMapTooLarge, limit)
	}
	return data, nil
}

func (c *RemoteContainer) urlPath() string {
	if u, err := url.Parse(c.url); err == nil {
		return u.Path
	}
	return c.url
}

func (c *RemoteContainer) isArchive() bool {
	return strings.EqualFold(path.Ext(c.urlPath()), ".zip")
}

func (c *RemoteContainer) format() Format {
	return FormatFor(c.urlPath())
}

func baseOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.Path = path.Dir(u.Path) + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
