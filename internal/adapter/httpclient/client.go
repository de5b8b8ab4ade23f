// Package httpclient wraps the hertz client for the JSON backends the robot
// talks to. Every failure to obtain a response is reported as a
// *ports.TransportError classified as timeout or connection error.
package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"roundsbot/internal/app/ports"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/app/client/retry"
	errs "github.com/cloudwego/hertz/pkg/common/errors"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

type Options struct {
	Service            string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

type Client struct {
	service string
	timeout time.Duration
	hc      *client.Client
}

type Reply struct {
	Status int
	Body   []byte
}

func (r Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

func New(opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Service == "" {
		opts.Service = "backend"
	}
	hc, err := client.NewClient(
		client.WithDialer(standard.NewDialer()),
		client.WithDialTimeout(opts.Timeout),
		client.WithClientReadTimeout(opts.Timeout),
		client.WithWriteTimeout(opts.Timeout),
		client.WithRetryConfig(retry.WithMaxAttemptTimes(1)),
		client.WithTLSConfig(&tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", opts.Service, err)
	}
	return &Client{service: opts.Service, timeout: opts.Timeout, hc: hc}, nil
}

func (c *Client) Get(ctx context.Context, url string) (Reply, error) {
	return c.Do(ctx, consts.MethodGet, url, nil)
}

func (c *Client) PostJSON(ctx context.Context, url string, body []byte) (Reply, error) {
	return c.Do(ctx, consts.MethodPost, url, body)
}

// Do performs one request bounded by the configured timeout. Cancelling ctx
// returns ctx.Err() immediately; the in-flight request is abandoned.
func (c *Client) Do(ctx context.Context, method, url string, body []byte) (Reply, error) {
	type outcome struct {
		reply Reply
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		req := protocol.AcquireRequest()
		resp := protocol.AcquireResponse()
		defer protocol.ReleaseRequest(req)
		defer protocol.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.SetMethod(method)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.SetContentTypeBytes([]byte("application/json"))
			req.SetBody(body)
		}
		if err := c.hc.DoTimeout(ctx, req, resp, c.timeout); err != nil {
			done <- outcome{err: c.classify(err)}
			return
		}
		done <- outcome{reply: Reply{
			Status: resp.StatusCode(),
			Body:   append([]byte(nil), resp.Body()...),
		}}
	}()

	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case out := <-done:
		return out.reply, out.err
	}
}

func (c *Client) classify(err error) error {
	kind := ports.ErrConnection
	var netErr net.Error
	switch {
	case errors.Is(err, errs.ErrTimeout),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		kind = ports.ErrTimeout
	}
	return &ports.TransportError{Service: c.service, Kind: kind, Err: err}
}

// Snippet bounds an upstream body for error messages and logs.
func Snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
