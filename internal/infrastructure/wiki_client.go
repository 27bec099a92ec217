package infrastructure

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"
)

var _ interfaces.KnowledgeClient = (*WikiClient)(nil)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxImageBytes = 20 << 20

type WikiClientConfig struct {
	APIURL         string
	SiteURL        string
	WikidataURL    string
	CommonsURL     string
	Language       string
	UserAgent      string
	RequestTimeout time.Duration
	LinkTimeout    time.Duration
	ThumbWidth     int
}

// WikiClient talks to the MediaWiki action API of the encyclopedia, its
// structured-data repository and the media repository.
type WikiClient struct {
	cfg  WikiClientConfig
	http *http.Client
}

func NewWikiClient(cfg WikiClientConfig, httpClient *http.Client) *WikiClient {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.LinkTimeout <= 0 {
		cfg.LinkTimeout = 10 * time.Second
	}
	if cfg.ThumbWidth <= 0 {
		cfg.ThumbWidth = 800
	}
	if cfg.Language == "" {
		cfg.Language = "uk"
	}
	return &WikiClient{cfg: cfg, http: httpClient}
}

// APIError is an error object returned by the action API.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

type apiPage struct {
	PageID    int64  `json:"pageid"`
	Title     string `json:"title"`
	Missing   bool   `json:"missing"`
	Index     int    `json:"index"`
	FullURL   string `json:"fullurl"`
	Extract   string `json:"extract"`
	PageProps struct {
		WikibaseItem string `json:"wikibase_item"`
	} `json:"pageprops"`
	ImageInfo []struct {
		URL            string `json:"url"`
		ThumbURL       string `json:"thumburl"`
		DescriptionURL string `json:"descriptionurl"`
	} `json:"imageinfo"`
}

type queryResponse struct {
	Error *APIError `json:"error"`
	Query struct {
		Pages []apiPage `json:"pages"`
	} `json:"query"`
}

// getJSON issues a GET against an action API endpoint with its own deadline.
func (c *WikiClient) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", params.Get("action"), err)
	}
	defer resp.Body.Close()

	log.WithRequestID(ctx).WithFields(log.Fields{
		"endpoint": endpoint,
		"action":   params.Get("action"),
		"status":   resp.StatusCode,
		"elapsed":  time.Since(started).String(),
	}).Debug("[WikiClient.getJSON] response")

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", params.Get("action"), resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", params.Get("action"), err)
	}
	return nil
}

func (c *WikiClient) query(ctx context.Context, endpoint string, params url.Values) ([]apiPage, error) {
	params.Set("action", "query")
	params.Set("formatversion", "2")

	var out queryResponse
	if err := c.getJSON(ctx, endpoint, params, &out); err != nil {
		return nil, err
	}
	if out.Error != nil {
		return nil, out.Error
	}

	pages := make([]apiPage, 0, len(out.Query.Pages))
	for _, p := range out.Query.Pages {
		if !p.Missing {
			pages = append(pages, p)
		}
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}

func pageParams() url.Values {
	params := url.Values{}
	params.Set("prop", "info|pageprops")
	params.Set("inprop", "url")
	params.Set("ppprop", "wikibase_item")
	return params
}

func (p apiPage) entity() *entities.Page {
	return &entities.Page{
		ID:     p.PageID,
		Title:  p.Title,
		URL:    p.FullURL,
		ItemID: p.PageProps.WikibaseItem,
	}
}

// SearchByTitle returns the best full-text match in the main namespace.
func (c *WikiClient) SearchByTitle(ctx context.Context, query string) (*entities.Page, error) {
	params := pageParams()
	params.Set("generator", "search")
	params.Set("gsrsearch", query)
	params.Set("gsrlimit", "1")
	params.Set("gsrnamespace", "0")
	params.Set("redirects", "1")

	pages, err := c.query(ctx, c.cfg.APIURL, params)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return pages[0].entity(), nil
}

func (c *WikiClient) RandomPage(ctx context.Context) (*entities.Page, error) {
	params := pageParams()
	params.Set("generator", "random")
	params.Set("grnlimit", "1")
	params.Set("grnnamespace", "0")
	params.Set("grnfilterredir", "nonredirects")

	pages, err := c.query(ctx, c.cfg.APIURL, params)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return pages[0].entity(), nil
}

// ExtractSummary returns the first sentences of the page as plain text
// with "== Heading ==" section markers left in place.
func (c *WikiClient) ExtractSummary(ctx context.Context, page *entities.Page, maxSentences int) (string, error) {
	params := url.Values{}
	params.Set("prop", "extracts")
	params.Set("exsentences", fmt.Sprint(maxSentences))
	params.Set("explaintext", "1")
	params.Set("titles", page.Title)

	pages, err := c.query(ctx, c.cfg.APIURL, params)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", nil
	}
	return pages[0].Extract, nil
}

// ResolveLink requests the article URL for title and follows redirects.
// Every status except 404 counts as a hit.
func (c *WikiClient) ResolveLink(ctx context.Context, title string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LinkTimeout)
	defer cancel()

	// "Київ#Історія" names a section of an existing page.
	name, section, _ := strings.Cut(title, "#")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	target, err := url.Parse(c.cfg.SiteURL)
	if err != nil {
		return "", fmt.Errorf("parse site url: %w", err)
	}
	target.Path = strings.TrimRight(target.Path, "/") + "/wiki/" + strings.ReplaceAll(name, " ", "_")
	if section = strings.TrimSpace(section); section != "" {
		target.Fragment = strings.ReplaceAll(section, " ", "_")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", target.String(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode == http.StatusNotFound {
		log.WithRequestID(ctx).WithFields(log.Fields{
			"url":    target.String(),
			"status": resp.StatusCode,
		}).Info("[WikiClient.ResolveLink] page does not exist")
		return "", nil
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("fetch %s: unexpected status %d", target.String(), resp.StatusCode)
	}

	finalURL := *resp.Request.URL
	if finalURL.Fragment == "" {
		finalURL.Fragment = target.Fragment
	}
	final := finalURL.String()
	decoded, err := url.PathUnescape(final)
	if err != nil {
		return final, nil
	}
	return decoded, nil
}

// DownloadJPEG returns the image body only for a 200 image/jpeg response.
func (c *WikiClient) DownloadJPEG(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", imageURL, err)
	}
	defer resp.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if resp.StatusCode != http.StatusOK || mediaType != "image/jpeg" {
		log.WithRequestID(ctx).WithFields(log.Fields{
			"url":          imageURL,
			"status":       resp.StatusCode,
			"content_type": resp.Header.Get("Content-Type"),
		}).Info("[WikiClient.DownloadJPEG] skipping non-jpeg image")
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", imageURL, err)
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("download %s: image larger than %d bytes", imageURL, maxImageBytes)
	}
	return body, nil
}

// fileInfo resolves a media file name to a resized rendition URL and its
// description page.
func (c *WikiClient) fileInfo(ctx context.Context, fileName string) (*entities.ImageRef, error) {
	params := url.Values{}
	params.Set("titles", "File:"+fileName)
	params.Set("prop", "imageinfo")
	params.Set("iiprop", "url")
	params.Set("iiurlwidth", fmt.Sprint(c.cfg.ThumbWidth))

	pages, err := c.query(ctx, c.cfg.CommonsURL, params)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 || len(pages[0].ImageInfo) == 0 {
		return nil, nil
	}
	info := pages[0].ImageInfo[0]
	ref := &entities.ImageRef{URL: info.ThumbURL, DescriptionURL: info.DescriptionURL}
	if ref.URL == "" {
		ref.URL = info.URL
	}
	return ref, nil
}
