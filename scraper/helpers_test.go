package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-gpus/config"
	"github.com/aluiziolira/go-scrape-gpus/parser"
)

func testSite(origin int) config.SiteConfig {
	return config.SiteConfig{
		StoreName:                "Shop",
		BaseURL:                  "http://shop.test",
		ListingURLTemplate:       "http://shop.test/catalog/page",
		PageIndexOrigin:          origin,
		ItemLinkSelector:         "div.item a",
		NameSelector:             "h1.name",
		ModelFeatureSelector:     "li.feature",
		PriceSelector:            "span.price",
		StockSelector:            "span.stock",
		PageIndicatorSelector:    "div.pager a",
		ModelFeatureKey:          "Серия",
		FeatureKeyValueSeparator: ":",
	}
}

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]string)}
}

func (f *fakeFetcher) add(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = body
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (parser.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	body, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, &FetchError{URL: url, Err: ErrNotFound{Err: errors.New("Not Found")}}
	}
	return parser.NewDocument(strings.NewReader(body))
}

func (f *fakeFetcher) called(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}

func (f *fakeFetcher) countPrefix(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Unix(1700000000, 0)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func buildListingPage(itemIDs []int, pager []string) string {
	var builder strings.Builder
	builder.WriteString("<html><body><section class=\"catalog\">")
	for _, id := range itemIDs {
		fmt.Fprintf(&builder, "<div class=\"item\"><a href=\"/gpu/%d\">GPU %d</a></div>", id, id)
	}
	builder.WriteString("</section><div class=\"pager\">")
	for _, p := range pager {
		fmt.Fprintf(&builder, "<a href=\"#\">%s</a>", p)
	}
	builder.WriteString("</div></body></html>")
	return builder.String()
}

type detail struct {
	name     string
	price    string
	stock    string
	features []string
}

func buildDetailPage(d detail) string {
	var builder strings.Builder
	builder.WriteString("<html><body>")
	if d.name != "" {
		fmt.Fprintf(&builder, "<h1 class=\"name\">%s</h1>", d.name)
	}
	if d.price != "" {
		fmt.Fprintf(&builder, "<span class=\"price\">%s</span>", d.price)
	}
	if d.stock != "" {
		fmt.Fprintf(&builder, "<span class=\"stock\">%s</span>", d.stock)
	}
	builder.WriteString("<ul>")
	for _, f := range d.features {
		fmt.Fprintf(&builder, "<li class=\"feature\">%s</li>", f)
	}
	builder.WriteString("</ul></body></html>")
	return builder.String()
}

func defaultDetail(id int) detail {
	return detail{
		name:     fmt.Sprintf("GeForce RTX %d (OEM)", 4000+id),
		price:    fmt.Sprintf("%d 990 ₽", id),
		stock:    "В наличии",
		features: []string{"Цвет: Черный", fmt.Sprintf("Серия: RTX %d", 4000+id)},
	}
}

// addCatalog registers listing pages for the given page indexes, each with
// perPage items, all sharing the same pager texts.
func addCatalog(f *fakeFetcher, site config.SiteConfig, pageIndexes []int, perPage int, pager []string) {
	for _, pageIndex := range pageIndexes {
		ids := make([]int, 0, perPage)
		for i := 0; i < perPage; i++ {
			id := pageIndex*100 + i + 1
			ids = append(ids, id)
			f.add(fmt.Sprintf("http://shop.test/gpu/%d", id), buildDetailPage(defaultDetail(id)))
		}
		f.add(site.ListingURL(pageIndex), buildListingPage(ids, pager))
	}
}
