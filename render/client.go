// Package render talks to the remote renderer producing the portable form of final proofs.
package render

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/pico-network/prover/shared"
)

const (
	// ProofWords is the number of uint256 values of a rendered proof.
	ProofWords = 10
	wordSize   = 32

	DefaultTimeout = 10 * time.Minute
)

var ErrMalformedProof = errors.New("malformed rendered proof")

// Client renders embed proofs with a remote renderer over HTTP.
type Client struct {
	url     string
	timeout time.Duration
	client  *fasthttp.Client
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:     strings.TrimSuffix(url, "/"),
		timeout: DefaultTimeout,
		client: &fasthttp.Client{
			Name:                "prover",
			MaxIdleConnDuration: 90 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Render posts the encoded embed proof to the renderer and decodes the returned proof.
func (c *Client) Render(ctx context.Context, embed shared.IndexedProof) ([]byte, error) {
	witness, err := embed.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding embed proof: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url + "/prove")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/octet-stream")
	req.SetBodyRaw(witness)

	if err := c.client.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return nil, fmt.Errorf("rendering proof: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("rendering proof: unexpected status %d: %s", resp.StatusCode(), resp.Body())
	}
	return DecodeProof(string(resp.Body()))
}

// Ping checks that the renderer is up.
func (c *Client) Ping(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.url + "/health")
	req.Header.SetMethod(fasthttp.MethodGet)
	if err := c.client.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// DecodeProof decodes ten comma separated hex uint256 values into their big-endian concatenation.
// The whole text may be quoted.
func DecodeProof(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, `"`)
	text = strings.TrimSuffix(text, `"`)

	values := strings.Split(text, ",")
	if len(values) != ProofWords {
		return nil, fmt.Errorf("%w: expected %d values, got %d", ErrMalformedProof, ProofWords, len(values))
	}

	out := make([]byte, ProofWords*wordSize)
	for i, value := range values {
		value = strings.TrimSpace(value)
		value = strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
		word, ok := new(big.Int).SetString(value, 16)
		if !ok || word.Sign() < 0 || word.BitLen() > 8*wordSize {
			return nil, fmt.Errorf("%w: value %d is not a uint256: %q", ErrMalformedProof, i, values[i])
		}
		word.FillBytes(out[i*wordSize : (i+1)*wordSize])
	}
	return out, nil
}
