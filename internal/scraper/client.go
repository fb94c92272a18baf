// Package scraper implements the MediaWiki API client that turns wiki page
// titles into metadata records. It is a collaborator of the retrieval
// layer, not part of the cache itself: pagination and partial-result
// handling against the remote source live here.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"cyberwiki/internal/core"
	"cyberwiki/internal/httpclient"
)

// ErrPageMissing is returned by FetchItemMetadata when the wiki has no page
// with the requested title.
var ErrPageMissing = errors.New("scraper: page not found")

const (
	memberPageSize   = 500
	categoryPageSize = 500
	maxImages        = 20
	maxLinks         = 50
	maxCategories    = 50
	maxResponseBytes = 8 * 1024 * 1024
)

// Config holds the wiki identity and transport for a Client.
type Config struct {
	// Slug is the fandom wiki subdomain, e.g. "cyberpunk".
	Slug string
	// Language selects a non-English wiki variant; empty or "en" uses the
	// wiki root.
	Language string
	// BaseURL overrides the fandom host entirely (tests).
	BaseURL string
	// HTTPClient overrides the default transport.
	HTTPClient *http.Client
}

// Client talks to one fandom wiki's MediaWiki API.
type Client struct {
	apiURL   string
	pageBase string
	http     *http.Client
}

// New creates a wiki API client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.fandom.com", cfg.Slug)
		if cfg.Language != "" && cfg.Language != "en" {
			base += "/" + cfg.Language
		}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(nil)
	}
	return &Client{
		apiURL:   base + "/api.php",
		pageBase: base,
		http:     client,
	}
}

// query performs one MediaWiki API GET and parses the JSON response.
func (c *Client) query(ctx context.Context, params url.Values) (gjson.Result, error) {
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("querying wiki API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("unexpected status %d from wiki API", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading response body: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("invalid JSON from wiki API")
	}
	return gjson.ParseBytes(raw), nil
}

// Ready probes the wiki API with a cheap siteinfo query.
func (c *Client) Ready(ctx context.Context) bool {
	_, err := c.query(ctx, url.Values{
		"action": {"query"},
		"meta":   {"siteinfo"},
	})
	return err == nil
}

// FetchCategoryMembers lists the article titles in a wiki category,
// following the API's cmcontinue pagination. On a transient failure it
// returns the members collected so far rather than erroring; only a failure
// before anything was fetched is reported.
func (c *Client) FetchCategoryMembers(ctx context.Context, categoryName string) ([]string, error) {
	var members []string
	cmcontinue := ""

	for {
		params := url.Values{
			"action":      {"query"},
			"list":        {"categorymembers"},
			"cmtitle":     {"Category:" + categoryName},
			"cmlimit":     {fmt.Sprint(memberPageSize)},
			"cmnamespace": {"0"}, // articles only
		}
		if cmcontinue != "" {
			params.Set("cmcontinue", cmcontinue)
		}

		res, err := c.query(ctx, params)
		if err != nil {
			if len(members) > 0 {
				slog.Warn("category member listing truncated", "category", categoryName, "fetched", len(members), "error", err)
				return members, nil
			}
			return nil, fmt.Errorf("fetching members of %q: %w", categoryName, err)
		}

		res.Get("query.categorymembers").ForEach(func(_, member gjson.Result) bool {
			if title := member.Get("title").String(); title != "" {
				members = append(members, title)
			}
			return true
		})

		cmcontinue = res.Get("continue.cmcontinue").String()
		if cmcontinue == "" {
			break
		}
	}

	return members, nil
}

// FetchAllCategories lists every category name the wiki knows about,
// following accontinue pagination.
func (c *Client) FetchAllCategories(ctx context.Context) ([]string, error) {
	var categories []string
	acfrom := ""

	for {
		params := url.Values{
			"action":  {"query"},
			"list":    {"allcategories"},
			"aclimit": {fmt.Sprint(categoryPageSize)},
		}
		if acfrom != "" {
			params.Set("acfrom", acfrom)
		}

		res, err := c.query(ctx, params)
		if err != nil {
			if len(categories) > 0 {
				slog.Warn("category listing truncated", "fetched", len(categories), "error", err)
				return categories, nil
			}
			return nil, fmt.Errorf("fetching category list: %w", err)
		}

		res.Get("query.allcategories").ForEach(func(_, cat gjson.Result) bool {
			// Format version 1 puts the name under the "*" key.
			if name := cat.Get("*").String(); name != "" {
				categories = append(categories, name)
			}
			return true
		})

		acfrom = res.Get("continue.accontinue").String()
		if acfrom == "" {
			break
		}
	}

	return categories, nil
}

// FetchItemMetadata assembles an ItemRecord for one wiki page: extract,
// categories, image URLs, and related page links. Failures of the
// secondary lookups degrade the record instead of failing it; only a
// missing page or an unreachable primary lookup is an error.
func (c *Client) FetchItemMetadata(ctx context.Context, title string) (*core.ItemRecord, error) {
	record := &core.ItemRecord{
		Title:        title,
		URL:          c.pageBase + "/wiki/" + strings.ReplaceAll(title, " ", "_"),
		Categories:   []string{},
		Images:       []core.Image{},
		Sections:     []core.Section{},
		RelatedPages: []string{},
	}

	res, err := c.query(ctx, url.Values{
		"action":          {"query"},
		"titles":          {title},
		"prop":            {"extracts"},
		"explaintext":     {"1"},
		"exsectionformat": {"wiki"},
		"formatversion":   {"2"},
	})
	if err != nil {
		return nil, err
	}
	page := res.Get("query.pages.0")
	if !page.Exists() || page.Get("missing").Exists() {
		return nil, ErrPageMissing
	}
	record.PageID = int(page.Get("pageid").Int())

	intro, sections := SplitSections(page.Get("extract").String())
	record.Sections = sections
	record.Description = CapSentences(CleanText(intro), 5)
	if record.Description == "" && len(sections) > 0 {
		// Pages that open with a heading have no lead text; fall back to
		// the first section.
		record.Description = CapSentences(sections[0].Content, 5)
	}

	c.fetchCategories(ctx, title, record)
	c.fetchImages(ctx, title, record)
	c.fetchLinks(ctx, title, record)
	c.fetchInfobox(ctx, title, record)

	return record, nil
}

func (c *Client) fetchCategories(ctx context.Context, title string, record *core.ItemRecord) {
	res, err := c.query(ctx, url.Values{
		"action":        {"query"},
		"titles":        {title},
		"prop":          {"categories"},
		"cllimit":       {fmt.Sprint(maxCategories)},
		"formatversion": {"2"},
	})
	if err != nil {
		slog.Debug("fetching page categories failed", "title", title, "error", err)
		return
	}
	res.Get("query.pages.0.categories").ForEach(func(_, cat gjson.Result) bool {
		name := strings.TrimPrefix(cat.Get("title").String(), "Category:")
		if name != "" {
			record.Categories = append(record.Categories, name)
		}
		return true
	})
}

func (c *Client) fetchImages(ctx context.Context, title string, record *core.ItemRecord) {
	res, err := c.query(ctx, url.Values{
		"action":        {"query"},
		"titles":        {title},
		"prop":          {"images"},
		"imlimit":       {fmt.Sprint(maxImages)},
		"formatversion": {"2"},
	})
	if err != nil {
		slog.Debug("fetching page images failed", "title", title, "error", err)
		return
	}
	res.Get("query.pages.0.images").ForEach(func(_, img gjson.Result) bool {
		imgTitle := img.Get("title").String()
		if !strings.HasPrefix(imgTitle, "File:") {
			return true
		}
		info, err := c.query(ctx, url.Values{
			"action":        {"query"},
			"titles":        {imgTitle},
			"prop":          {"imageinfo"},
			"iiprop":        {"url"},
			"formatversion": {"2"},
		})
		if err != nil {
			slog.Debug("fetching image URL failed", "image", imgTitle, "error", err)
			return true
		}
		if imgURL := info.Get("query.pages.0.imageinfo.0.url").String(); imgURL != "" {
			record.Images = append(record.Images, core.Image{
				Title: strings.TrimPrefix(imgTitle, "File:"),
				URL:   imgURL,
			})
		}
		return true
	})
}

func (c *Client) fetchLinks(ctx context.Context, title string, record *core.ItemRecord) {
	res, err := c.query(ctx, url.Values{
		"action":        {"query"},
		"titles":        {title},
		"prop":          {"links"},
		"pllimit":       {fmt.Sprint(maxLinks)},
		"formatversion": {"2"},
	})
	if err != nil {
		slog.Debug("fetching page links failed", "title", title, "error", err)
		return
	}
	res.Get("query.pages.0.links").ForEach(func(_, link gjson.Result) bool {
		if t := link.Get("title").String(); t != "" {
			record.RelatedPages = append(record.RelatedPages, t)
		}
		return true
	})
}

// fetchInfobox pulls the page's wikitext and extracts the fields of its
// infobox template, if the page carries one.
func (c *Client) fetchInfobox(ctx context.Context, title string, record *core.ItemRecord) {
	res, err := c.query(ctx, url.Values{
		"action":        {"query"},
		"titles":        {title},
		"prop":          {"revisions"},
		"rvprop":        {"content"},
		"rvslots":       {"main"},
		"formatversion": {"2"},
	})
	if err != nil {
		slog.Debug("fetching page wikitext failed", "title", title, "error", err)
		return
	}
	wikitext := res.Get("query.pages.0.revisions.0.slots.main.content").String()
	if fields := ParseInfobox(wikitext); len(fields) > 0 {
		record.Infobox = fields
	}
}

// ScrapeCategory fetches the full metadata record set for one wiki
// category, in member listing order. Pages that fail individually are
// skipped; the result is only an error when the member listing itself
// could not be fetched.
func (c *Client) ScrapeCategory(ctx context.Context, categoryName string) ([]core.ItemRecord, error) {
	members, err := c.FetchCategoryMembers(ctx, categoryName)
	if err != nil {
		return nil, err
	}

	slog.Info("scraping category", "category", categoryName, "members", len(members))

	records := make([]core.ItemRecord, 0, len(members))
	for i, title := range members {
		record, err := c.FetchItemMetadata(ctx, title)
		if err != nil {
			slog.Warn("skipping page", "title", title, "error", err)
			continue
		}
		records = append(records, *record)

		if (i+1)%10 == 0 {
			slog.Info("scrape progress", "category", categoryName, "done", i+1, "total", len(members))
		}
	}

	return records, nil
}
