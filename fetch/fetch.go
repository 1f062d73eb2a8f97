// Package fetch retrieves raw feed and schema bytes over HTTP(S).
package fetch

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math"
	"math/big"
	"net/url"
	"time"

	"github.com/parnurzeal/gorequest"
	"github.com/samber/lo"
	"golang.org/x/xerrors"
)

var allowedSchemes = []string{"http", "https"}

// Error is a transport-level failure reaching a remote source. It is
// distinct from validation and parse failures so callers can decide
// whether a retry of the whole run makes sense.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Bytes returns the HTTP response body with retry
func Bytes(ctx context.Context, rawURL string, retry int) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: xerrors.Errorf("invalid URL: %w", err)}
	}
	if !u.IsAbs() {
		return nil, &Error{URL: rawURL, Err: xerrors.New("URL must be absolute")}
	}
	if !lo.Contains(allowedSchemes, u.Scheme) {
		return nil, &Error{URL: rawURL, Err: xerrors.Errorf("invalid URL scheme: %s", u.Scheme)}
	}

	var res []byte
	for i := 0; i <= retry; i++ {
		if i > 0 {
			wait := math.Pow(float64(i), 2) + float64(randInt()%10)
			log.Printf("retry after %f seconds\n", wait)
			select {
			case <-time.After(time.Duration(wait) * time.Second):
			case <-ctx.Done():
				return nil, &Error{URL: rawURL, Err: ctx.Err()}
			}
		}
		if err = ctx.Err(); err != nil {
			return nil, &Error{URL: rawURL, Err: err}
		}
		res, err = fetchURL(rawURL)
		if err == nil {
			return res, nil
		}
	}
	return nil, &Error{URL: rawURL, Err: err}
}

func randInt() int {
	seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	return int(seed.Int64())
}

func fetchURL(url string) ([]byte, error) {
	resp, body, errs := gorequest.New().Get(url).Type("text").EndBytes()
	if len(errs) > 0 {
		return nil, xerrors.Errorf("HTTP error. url: %s, err: %w", url, errs[0])
	}
	if resp.StatusCode != 200 {
		return nil, xerrors.Errorf("HTTP error. status code: %d, url: %s", resp.StatusCode, url)
	}
	return body, nil
}
