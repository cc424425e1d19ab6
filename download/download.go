package download

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	log "github.com/sirupsen/logrus"
	"mvdan.cc/xurls/v2"
)

// Timeout bounds a single fetch, including reading the full body.
const Timeout = 30 * time.Second

var httpURL *regexp.Regexp

func init() {
	rx, err := xurls.StrictMatchingScheme(`https?://`)
	if err != nil {
		panic(err)
	}
	httpURL = rx
}

// GetBody performs an http GET with url=u using the supplied client and
// header. On a 2xx response it returns the body and its Content-Type. Any
// failure, including a malformed url or a non-2xx status, is a *FetchError.
func GetBody(ctx context.Context, hc *http.Client, u string, header http.Header) (io.ReadCloser, string, error) {
	if httpURL.FindString(u) != u {
		return nil, "", &FetchError{URL: u, Err: errors.New("not a valid http(s) url")}
	}

	log.Debugf("get: %s", u)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, "", &FetchError{URL: u, Err: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rsp, err := hc.Do(req)
	if err != nil {
		return nil, "", &FetchError{URL: u, Err: err}
	}

	if rsp.StatusCode < 200 || rsp.StatusCode >= 300 {
		rsp.Body.Close()
		return nil, "", &FetchError{URL: u, StatusCode: rsp.StatusCode}
	}

	return rsp.Body, rsp.Header.Get("Content-Type"), nil
}

// Get calls GetBody(), then reads the full response and returns the result
// along with the response Content-Type.
func Get(ctx context.Context, hc *http.Client, u string, header http.Header) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	body, ctype, err := GetBody(ctx, hc, u, header)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	b, err := io.ReadAll(NewContextReader(ctx, body))
	if err != nil {
		return nil, "", &FetchError{URL: u, Err: err}
	}

	return b, ctype, nil
}
