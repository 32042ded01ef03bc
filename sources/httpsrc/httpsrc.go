// Package httpsrc is an out-of-scope (per spec.md §1's Non-goals) but
// required-for-the-contract-to-have-callers source adapter: a thin GET/HEAD
// wrapper over net/http that settles through the core engine's Settle
// contract.
package httpsrc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/joeycumines/go-longpoll"
	"github.com/tinwire/deferred/deferred"
)

// Response is what a successful Get/Head fulfils with.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type requestProducer struct {
	ctx    context.Context
	cancel context.CancelFunc
	method string
	url    string
}

func (p *requestProducer) Start(settle deferred.Settle) error {
	ctx, cancel := context.WithCancel(p.ctx)
	p.cancel = cancel
	deferred.CurrentLoop().RegisterWait(func() (deferred.Result, error) {
		req, err := http.NewRequestWithContext(ctx, p.method, p.url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := drainBody(ctx, resp.Body)
		if err != nil {
			return nil, err
		}
		return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
	}, func(v deferred.Result, err error) {
		if err != nil {
			settle.Reject(err)
			return
		}
		settle.Fulfil(v)
	})
	return nil
}

func (p *requestProducer) Abort() {
	if p.cancel != nil {
		p.cancel()
	}
}

// drainBody streams r through github.com/joeycumines/go-longpoll's Channel
// in bounded chunks rather than a single io.ReadAll call: go-longpoll's own
// doc comment describes itself as the lower-level alternative to
// go-microbatch (used by workersrc) "if you require more control over the
// batching ... behavior", which is exactly what reading a response body
// incrementally needs.
func drainBody(ctx context.Context, r io.Reader) ([]byte, error) {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		buf := make([]byte, 32*1024)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr <- err
				}
				return
			}
		}
	}()

	cfg := &longpoll.ChannelConfig{MaxSize: -1, MinSize: -1, PartialTimeout: 20 * time.Millisecond}
	var out bytes.Buffer
	for {
		err := longpoll.Channel(ctx, cfg, chunks, func(chunk []byte) error {
			out.Write(chunk)
			return nil
		})
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	select {
	case e := <-readErr:
		return nil, e
	default:
	}
	return out.Bytes(), nil
}

func request(ctx context.Context, method, url string) *deferred.Node {
	return deferred.New(&requestProducer{ctx: ctx, method: method, url: url})
}

// Get issues an HTTP GET, fulfilling with a *Response or rejecting with
// KindUser wrapping the transport/decode error.
func Get(ctx context.Context, url string) *deferred.Node {
	return request(ctx, http.MethodGet, url)
}

// Head issues an HTTP HEAD.
func Head(ctx context.Context, url string) *deferred.Node {
	return request(ctx, http.MethodHead, url)
}
