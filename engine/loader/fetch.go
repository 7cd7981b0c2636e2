package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/Carmen-Shannon/oxy-figure/common"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ProgressFunc receives advisory byte counts while an asset body streams in.
type ProgressFunc func(p common.Progress)

// fetcher performs HTTP GETs with throttling, a size cap, an optional byte cache, and
// de-duplication of concurrent requests for the same URL.
type fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	maxBytes  int64
	userAgent string
	logger    *zap.Logger

	cacheEnabled bool
	mu           sync.RWMutex
	cache        map[string][]byte
	group        singleflight.Group
}

func newFetcher() *fetcher {
	return &fetcher{
		client:    http.DefaultClient,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		maxBytes:  256 << 20,
		userAgent: "oxy-figure",
		logger:    zap.NewNop(),
		cache:     make(map[string][]byte),
	}
}

// Fetch returns the body at url. Progress is reported only by the caller that performs the transfer;
// callers joining an in-flight request for the same URL share its result.
func (f *fetcher) Fetch(ctx context.Context, url string, progress ProgressFunc) ([]byte, error) {
	if f.cacheEnabled {
		f.mu.RLock()
		cached, ok := f.cache[url]
		f.mu.RUnlock()
		if ok {
			f.logger.Debug("asset cache hit", zap.String("url", url))
			report(progress, int64(len(cached)), int64(len(cached)))
			return cached, nil
		}
	}

	ch := f.group.DoChan(url, func() (any, error) {
		return f.get(ctx, url, progress)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		data := res.Val.([]byte)
		if f.cacheEnabled {
			f.mu.Lock()
			f.cache[url] = data
			f.mu.Unlock()
		}
		return data, nil
	}
}

func (f *fetcher) get(ctx context.Context, url string, progress ProgressFunc) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, common.Errorf(common.ErrLoadNetwork, "invalid url %q", url).WithCause(err).WithRetryable(false)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, common.Errorf(common.ErrLoadNetwork, "GET %s", url).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, common.Errorf(common.ErrLoadNetwork, "GET %s: %s", url, resp.Status)
	}

	total := resp.ContentLength
	if total > f.maxBytes {
		return nil, common.Errorf(common.ErrMalformedAsset, "asset is %d bytes, limit is %d", total, f.maxBytes)
	}

	body := &progressReader{r: io.LimitReader(resp.Body, f.maxBytes+1), total: total, fn: progress}
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, common.Errorf(common.ErrLoadNetwork, "read %s", url).WithCause(err)
	}
	if int64(buf.Len()) > f.maxBytes {
		return nil, common.Errorf(common.ErrMalformedAsset, "asset exceeds %d bytes", f.maxBytes)
	}
	report(progress, int64(buf.Len()), int64(buf.Len()))
	return buf.Bytes(), nil
}

// progressReader reports cumulative bytes after every read.
type progressReader struct {
	r     io.Reader
	read  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		total := p.total
		if total <= 0 {
			total = -1
		}
		report(p.fn, p.read, total)
	}
	return n, err
}

func report(fn ProgressFunc, received, total int64) {
	if fn != nil {
		fn(common.Progress{Received: received, Total: total})
	}
}

// String describes the fetcher configuration for logs.
func (f *fetcher) String() string {
	return fmt.Sprintf("fetcher(maxBytes=%d, cache=%t, limit=%v)", f.maxBytes, f.cacheEnabled, f.limiter.Limit())
}
