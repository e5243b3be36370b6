package nppes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	IndexURL  = "https://download.cms.gov/nppes/NPI_Files.html"
	UserAgent = "nppes-extract/1.0 (github.com/pfrederiksen/nppes-extract)"
	Timeout   = 120 * time.Second
)

// monthlyV2Pattern matches Monthly V2 dissemination archives, e.g.
// NPPES_Data_Dissemination_October_2026_V2.zip
var monthlyV2Pattern = regexp.MustCompile(`(?i)NPPES_Data_Dissemination.*?(V2|V\.2).*?\.zip$`)

// ErrNotFound is returned when the index page links no Monthly V2 archive
var ErrNotFound = errors.New("could not find Monthly V2 file on CMS index page")

// ErrIdleTimeout is returned when a response body stops delivering data for
// longer than the client timeout
var ErrIdleTimeout = errors.New("no data received within timeout")

// StatusError reports a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

// Client fetches the NPPES index page and archives
type Client struct {
	client   *http.Client
	indexURL string
	timeout  time.Duration
}

// New creates a Client for the given index URL. A zero timeout uses Timeout.
//
// The timeout bounds connecting, the TLS handshake, waiting for response
// headers and each stretch without body data. It does not cap the total
// transfer time, so a large archive arriving slowly still completes.
func New(indexURL string, timeout time.Duration) *Client {
	if indexURL == "" {
		indexURL = IndexURL
	}
	if timeout <= 0 {
		timeout = Timeout
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
	}

	return &Client{
		client:   &http.Client{Transport: transport},
		indexURL: indexURL,
		timeout:  timeout,
	}
}

// IndexURL returns the index page the client reads
func (c *Client) IndexURL() string {
	return c.indexURL
}

// get issues a GET and returns the response when the status is 2xx
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// fetch GETs rawURL and hands the body to read. The request is cancelled
// when the body delivers nothing for the client timeout.
func (c *Client) fetch(ctx context.Context, rawURL string, read func(io.Reader) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := newIdleReader(resp.Body, c.timeout, func() { cancel(ErrIdleTimeout) })
	defer body.stop()

	if err := read(body); err != nil {
		if errors.Is(context.Cause(ctx), ErrIdleTimeout) {
			return fmt.Errorf("reading %s: %w", rawURL, ErrIdleTimeout)
		}
		return err
	}
	return nil
}

// FindLatest fetches the index page and returns the URL of the newest Monthly V2 archive
func (c *Client) FindLatest(ctx context.Context) (string, error) {
	base, err := url.Parse(c.indexURL)
	if err != nil {
		return "", fmt.Errorf("parsing index URL: %w", err)
	}

	var links []string
	err = c.fetch(ctx, c.indexURL, func(body io.Reader) error {
		var parseErr error
		links, parseErr = ExtractLinks(body, base)
		return parseErr
	})
	if err != nil {
		return "", err
	}

	return SelectLatest(links)
}

// Download fetches rawURL and returns the whole body
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	err := c.fetch(ctx, rawURL, func(body io.Reader) error {
		var readErr error
		data, readErr = io.ReadAll(body)
		if readErr != nil {
			return fmt.Errorf("reading %s: %w", rawURL, readErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// idleReader calls onIdle once when no bytes arrive for timeout
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *idleReader {
	return &idleReader{
		r:       r,
		timeout: timeout,
		timer:   time.AfterFunc(timeout, onIdle),
	}
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) stop() {
	r.timer.Stop()
}

// ExtractLinks returns the href of every anchor in the HTML document, resolved against base.
// Empty and unparsable hrefs are skipped.
func ExtractLinks(r io.Reader, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	links := make([]string, 0)
	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		links = append(links, ref.String())
	})

	return links, nil
}

// SelectLatest keeps the links naming a Monthly V2 archive and returns the greatest one
func SelectLatest(links []string) (string, error) {
	candidates := make([]string, 0)
	for _, link := range links {
		if monthlyV2Pattern.MatchString(link) {
			candidates = append(candidates, link)
		}
	}

	if len(candidates) == 0 {
		return "", ErrNotFound
	}

	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))
	return candidates[0], nil
}
