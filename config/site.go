package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// DefaultOutOfStockText is the stock label the supported stores render for zero units.
const DefaultOutOfStockText = "= 0 шт."

// PagePlaceholder is replaced by the page index in a listing URL template.
const PagePlaceholder = "{page}"

// ConfigError reports an invalid site configuration.
type ConfigError struct {
	Site   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Site == "" {
		return fmt.Sprintf("site config: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("site config %q: %s %s", e.Site, e.Field, e.Reason)
}

// SiteConfig describes how to crawl and extract one store.
type SiteConfig struct {
	StoreName          string `mapstructure:"store_name" json:"store_name"`
	BaseURL            string `mapstructure:"base_url" json:"base_url"`
	ListingURLTemplate string `mapstructure:"listing_url_template" json:"listing_url_template"`
	PageIndexOrigin    int    `mapstructure:"page_index_origin" json:"page_index_origin"`

	ItemLinkSelector      string `mapstructure:"item_link_selector" json:"item_link_selector"`
	NameSelector          string `mapstructure:"name_selector" json:"name_selector"`
	ModelFeatureSelector  string `mapstructure:"model_feature_selector" json:"model_feature_selector"`
	PriceSelector         string `mapstructure:"price_selector" json:"price_selector"`
	StockSelector         string `mapstructure:"stock_selector" json:"stock_selector"`
	PageIndicatorSelector string `mapstructure:"page_indicator_selector" json:"page_indicator_selector"`

	ModelFeatureKey          string `mapstructure:"model_feature_key" json:"model_feature_key"`
	FeatureKeyValueSeparator string `mapstructure:"feature_key_value_separator" json:"feature_key_value_separator"`

	// OutOfStockText overrides DefaultOutOfStockText when set.
	OutOfStockText string `mapstructure:"out_of_stock_text" json:"out_of_stock_text,omitempty"`
	// MaxPages overrides Config.MaxPages for this site when positive.
	MaxPages int `mapstructure:"max_pages" json:"max_pages,omitempty"`
}

// Validate rejects empty required fields and unsupported page origins.
func (s SiteConfig) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"store_name", s.StoreName},
		{"base_url", s.BaseURL},
		{"listing_url_template", s.ListingURLTemplate},
		{"item_link_selector", s.ItemLinkSelector},
		{"name_selector", s.NameSelector},
		{"model_feature_selector", s.ModelFeatureSelector},
		{"price_selector", s.PriceSelector},
		{"stock_selector", s.StockSelector},
		{"page_indicator_selector", s.PageIndicatorSelector},
		{"model_feature_key", s.ModelFeatureKey},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigError{Site: s.StoreName, Field: r.field, Reason: "cannot be empty"}
		}
	}
	// The separator may legitimately be whitespace, so only the empty string is rejected.
	if s.FeatureKeyValueSeparator == "" {
		return &ConfigError{Site: s.StoreName, Field: "feature_key_value_separator", Reason: "cannot be empty"}
	}
	if s.PageIndexOrigin != 0 && s.PageIndexOrigin != 1 {
		return &ConfigError{Site: s.StoreName, Field: "page_index_origin", Reason: "must be 0 or 1"}
	}
	if s.MaxPages < 0 {
		return &ConfigError{Site: s.StoreName, Field: "max_pages", Reason: "cannot be negative"}
	}

	parsed, err := url.Parse(s.BaseURL)
	if err != nil {
		return &ConfigError{Site: s.StoreName, Field: "base_url", Reason: fmt.Sprintf("is invalid: %v", err)}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return &ConfigError{Site: s.StoreName, Field: "base_url", Reason: "must include scheme and host"}
	}
	return nil
}

// ListingURL builds the listing page URL for pageIndex.
func (s SiteConfig) ListingURL(pageIndex int) string {
	page := strconv.Itoa(pageIndex)
	if strings.Contains(s.ListingURLTemplate, PagePlaceholder) {
		return strings.ReplaceAll(s.ListingURLTemplate, PagePlaceholder, page)
	}
	return s.ListingURLTemplate + page
}

// Ordinal converts a page index into the 1-based page number a store's pager displays.
func (s SiteConfig) Ordinal(pageIndex int) int {
	if s.PageIndexOrigin == 0 {
		return pageIndex + 1
	}
	return pageIndex
}

// ResolveURL resolves an item link against the store's base URL.
func (s SiteConfig) ResolveURL(href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", errors.New("empty link")
	}
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// StockSentinel returns the text that marks an item as out of stock.
func (s SiteConfig) StockSentinel() string {
	if s.OutOfStockText != "" {
		return s.OutOfStockText
	}
	return DefaultOutOfStockText
}

// PageLimit returns the pagination safety bound for this site.
func (s SiteConfig) PageLimit(fallback int) int {
	if s.MaxPages > 0 {
		return s.MaxPages
	}
	return fallback
}

// LoadSites reads the "sites" list from a YAML, JSON or TOML file and validates each entry.
func LoadSites(path string) ([]SiteConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read sites file %s: %w", path, err)
	}

	var sites []SiteConfig
	if err := v.UnmarshalKey("sites", &sites); err != nil {
		return nil, fmt.Errorf("decode sites from %s: %w", path, err)
	}
	if len(sites) == 0 {
		return nil, fmt.Errorf("no sites configured in %s", path)
	}
	for _, site := range sites {
		if err := site.Validate(); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

// DefaultSites returns the built-in store configurations.
func DefaultSites() []SiteConfig {
	return []SiteConfig{
		{
			StoreName:                "OnlineTrade",
			BaseURL:                  "https://www.onlinetrade.ru/",
			ListingURLTemplate:       "https://www.onlinetrade.ru/catalogue/videokarty-c338/?page={page}",
			PageIndexOrigin:          0,
			ItemLinkSelector:         "div.indexGoods__item__flexCover > div > a[href]",
			NameSelector:             "div.productPage__card  h1",
			ModelFeatureSelector:     "li.featureList__item",
			PriceSelector:            "span.js__actualPrice",
			StockSelector:            "span.catalog__displayedItem__availabilityCount label",
			PageIndicatorSelector:    "div.paginator > div.paginator__links > a",
			ModelFeatureKey:          "Серия процессора",
			FeatureKeyValueSeparator: ":",
		},
		{
			StoreName:                "Regard",
			BaseURL:                  "https://regard.ru",
			ListingURLTemplate:       "https://www.regard.ru/catalog/group4000.htm/page{page}",
			PageIndexOrigin:          1,
			ItemLinkSelector:         "#hits > div.content > div.block > div.bcontent > div.aheader > a",
			NameSelector:             "#goods_head",
			ModelFeatureSelector:     "#tabs-1 > table tr",
			PriceSelector:            "#hits-long > div.content > div.block.bblock-long.lot > div.bcontent.lot > div.goods_price > div.price_block > span.price.lot > span",
			StockSelector:            "#hits-long > div.content > div.block.bblock-long.lot > div.bcontent.lot > div.goods_price > div.action_block.left > div > div",
			PageIndicatorSelector:    "#hits > div.content > div.pagination > a",
			ModelFeatureKey:          "Серия",
			FeatureKeyValueSeparator: "  ",
		},
	}
}
