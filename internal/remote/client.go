// Package remote holds the HTTP clients the order API uses to reach the
// inventory and payment services.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

type Options struct {
	Timeout     time.Duration // per attempt
	MaxRetries  int
	BaseBackoff time.Duration
	HTTP        *http.Client
	Log         *slog.Logger
}

// client retries transport errors, 429 and 5xx with jittered exponential
// backoff. Every other non-2xx answer is final.
type client struct {
	base string
	opts Options
	http *http.Client
	log  *slog.Logger
}

func newClient(base string, o Options) *client {
	if o.Timeout <= 0 {
		o.Timeout = 2 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 100 * time.Millisecond
	}
	hc := o.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: o.Timeout}
	}
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	return &client{base: base, opts: o, http: hc, log: log}
}

func (c *client) policy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.opts.BaseBackoff
	eb.RandomizationFactor = 0.5
	eb.Multiplier = 2
	eb.MaxInterval = 16 * c.opts.BaseBackoff
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.opts.MaxRetries)), ctx)
}

// do sends in as JSON and decodes a 2xx body into out. Errors are always
// *apperr.Error: the peer's own code when it sent one, ErrUnavailable when
// the peer could not be reached.
func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, err, "encode request")
		}
		body = b
	}

	var (
		attempt int
		final   error // a definitive answer that must reach the caller as is
	)
	op := func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(actx, method, c.base+path, bytes.NewReader(body))
		if err != nil {
			final = apperr.Wrap(apperr.ErrInternal, err, "build request")
			return backoff.Permanent(final)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(apperr.Wrap(apperr.ErrUnavailable, err, "decode response"))
			}
			return nil
		}

		peerErr := decodeError(resp)
		if retryable(resp.StatusCode) {
			return peerErr
		}
		final = peerErr
		return backoff.Permanent(peerErr)
	}

	notify := func(err error, wait time.Duration) {
		c.log.WarnContext(ctx, "remote call retry", "method", method, "path", path,
			"attempt", attempt, "wait_ms", wait.Milliseconds(), "err", err)
	}

	err := backoff.RetryNotify(op, c.policy(ctx), notify)
	if err == nil {
		return nil
	}
	if final != nil {
		return final
	}
	return apperr.Wrap(apperr.ErrUnavailable, err, fmt.Sprintf("%s %s after %d attempts", method, path, attempt))
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func decodeError(resp *http.Response) error {
	var b apperr.Body
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &b); err != nil || b.Error.Code == "" {
		b.Error.Message = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return apperr.FromBody(resp.StatusCode, b)
}
