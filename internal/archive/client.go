// Package archive resolves and fetches daily granule listings and granule
// files from an OpenDAP archive.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/limnosat/sif-harvester/internal/config"
)

// ErrUnavailable reports that a listing or granule could not be fetched or
// parsed. Callers treat it as "no files today" and move on.
var ErrUnavailable = errors.New("archive unavailable")

// granulePrefix is the case-insensitive filename prefix that marks granule
// entries in a listing table.
const granulePrefix = "oco"

// Client fetches listings and granules over HTTP.
type Client struct {
	baseURL    string
	product    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates an archive client with the configured timeout.
func NewClient(cfg config.ArchiveConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		product: cfg.Product,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: logger,
	}
}

// ListingURL computes the contents page URL for one date. The archive keys
// folders by year and a day-of-year that is offset one past the ordinal day,
// zero-padded to three digits.
func (c *Client) ListingURL(date time.Time) string {
	doy := date.YearDay() + 1
	return fmt.Sprintf("%s/%s/%d/%03d/contents.html", c.baseURL, c.product, date.Year(), doy)
}

// GranuleURL resolves a granule filename against its listing's directory.
func (c *Client) GranuleURL(listingURL, name string) string {
	return strings.TrimSuffix(listingURL, "contents.html") + name
}

// FetchListing retrieves the listing document at url and returns the granule
// filenames from the first column of its table, in archive order. Network,
// status, and parse failures all surface as ErrUnavailable.
func (c *Client) FetchListing(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create listing request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch listing %s: %v", ErrUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: listing %s returned status %d", ErrUnavailable, url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse listing %s: %v", ErrUnavailable, url, err)
	}

	var names []string
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		name := strings.TrimSpace(cell.Text())
		if strings.HasPrefix(strings.ToLower(name), granulePrefix) {
			names = append(names, name)
		}
	})

	c.log.Debug("parsed listing", "url", url, "granules", len(names))
	return names, nil
}

// Download fetches a granule to destPath, overwriting whatever is there. The
// write goes through a temp file and rename so a failed transfer never leaves
// a truncated granule at the destination.
func (c *Client) Download(ctx context.Context, fileURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", ErrUnavailable, fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download %s returned status %d", ErrUnavailable, fileURL, resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file %s: %w", tmpPath, err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, tmpPath, err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s to %s: %w", tmpPath, destPath, err)
	}

	c.log.Debug("downloaded granule", "url", fileURL, "bytes", n)
	return nil
}
