// Package fetch performs upstream GETs that follow temporary and permanent
// redirects by hand, up to a fixed number of hops.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"comparador/pkg/logger"

	"github.com/gocolly/colly/v2"
)

const (
	DefaultMaxHops = 3
	DefaultTimeout = 15 * time.Second
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var ErrTooManyRedirects = errors.New("too many redirects")

// Response is the terminal upstream response of a Get.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// RedirectObserver is told about every redirect hop taken.
type RedirectObserver interface {
	ObserveRedirect()
}

type Fetcher struct {
	MaxHops   int
	Timeout   time.Duration
	UserAgent string
	Transport http.RoundTripper
	Observer  RedirectObserver
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		MaxHops:   DefaultMaxHops,
		Timeout:   DefaultTimeout,
		UserAgent: UserAgent,
	}
}

// Get issues a GET to target. A 307 or 308 carrying a Location header is
// followed, at most MaxHops times; one without Location is returned as is.
// Every other status is returned without looking at the body.
func (f *Fetcher) Get(ctx context.Context, target string) (*Response, error) {
	if f.MaxHops <= 0 {
		return nil, ErrTooManyRedirects
	}

	log := logger.With("fetch")
	for hop := 0; ; hop++ {
		res, err := f.get(ctx, target)
		if err != nil {
			return nil, err
		}
		if !isRedirect(res.StatusCode) {
			return res, nil
		}

		location := res.Header.Get("Location")
		if location == "" {
			return res, nil
		}
		if hop == f.MaxHops {
			return nil, ErrTooManyRedirects
		}

		next, err := Resolve(target, location)
		if err != nil {
			return nil, fmt.Errorf("resolve redirect %q from %s: %w", location, target, err)
		}
		log.Debug().Int("status", res.StatusCode).Str("from", target).Str("to", next).Msg("following redirect")
		if f.Observer != nil {
			f.Observer.ObserveRedirect()
		}
		target = next
	}
}

// Resolve computes the next redirect target. Locations starting with a
// scheme are taken verbatim, anything else is resolved against current.
func Resolve(current, location string) (string, error) {
	if strings.HasPrefix(location, "http") {
		return location, nil
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func isRedirect(status int) bool {
	return status == http.StatusTemporaryRedirect || status == http.StatusPermanentRedirect
}

// get performs exactly one request. Each call gets a fresh collector so
// callbacks never leak between requests.
func (f *Fetcher) get(ctx context.Context, target string) (*Response, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.ParseHTTPErrorResponse = true
	if f.Transport != nil {
		c.WithTransport(f.Transport)
	}
	if f.Timeout > 0 {
		c.SetRequestTimeout(f.Timeout)
	}
	c.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})

	var res *Response
	c.OnResponse(func(r *colly.Response) {
		res = &Response{
			StatusCode: r.StatusCode,
			Body:       r.Body,
			URL:        r.Request.URL.String(),
		}
		if r.Headers != nil {
			res.Header = r.Headers.Clone()
		} else {
			res.Header = http.Header{}
		}
	})

	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	if res == nil {
		return nil, fmt.Errorf("get %s: no response", target)
	}
	return res, nil
}
