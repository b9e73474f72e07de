package transfer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go"
)

var (
	defaultClientOnce sync.Once
	defaultClientInst *http.Client
)

// defaultClient is shared by all managers that did not supply their own.
// No overall timeout: artifact bodies stream for minutes and cancellation
// is per-request via context.
func defaultClient() *http.Client {
	defaultClientOnce.Do(func() {
		defaultClientInst = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          16,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		}
	})
	return defaultClientInst
}

// openStream issues the GET for a job, asking for a byte range when offset
// is non-zero. Request issuance is retried a bounded number of times with a
// fixed delay; 5xx responses count as retryable, everything else is returned
// to the caller for protocol handling.
func (m *Manager) openStream(ctx context.Context, url string, offset int64) (*http.Response, error) {
	var resp *http.Response
	err := retry.Do(
		func() error {
			if cerr := ctx.Err(); cerr != nil {
				return retry.Unrecoverable(cerr)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if offset > 0 {
				req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
			}
			r, err := m.client.Do(req)
			if err != nil {
				if cerr := ctx.Err(); cerr != nil {
					return retry.Unrecoverable(cerr)
				}
				return err
			}
			if r.StatusCode >= http.StatusInternalServerError {
				r.Body.Close()
				return fmt.Errorf("upstream status %s", r.Status)
			}
			resp = r
			return nil
		},
		retry.Attempts(m.retryAttempts),
		retry.Delay(m.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return nil, errNetwork("request "+url, err)
	}
	return resp, nil
}
