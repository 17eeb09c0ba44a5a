package extract

import (
	"net/url"
	"strings"
)

// Hosts that never count as commerce destinations: social platforms
// and their CDNs show up constantly in shared-post payloads.
var excludedDomains = []string{
	"instagram.com", "facebook.com", "fb.me",
	"lookaside.fbsbx.com", "scontent", "twitter.com",
	"youtube.com", "tiktok.com", "linkedin.com",
}

// Path and host tokens that indicate a storefront or product page.
var commerceIndicators = []string{
	"/product", "/shop", "/buy", "/store", "/item", "/cart",
	"/checkout", "/order", "/purchase", "/collection",
	"/p/", "/dp/",
	"shopify.", ".store", ".shop", ".buy",
}

// Link shorteners commonly used in bios and captions to point at shops.
var shortenerDomains = []string{
	"bit.ly", "linktr.ee", "link.tree", "link.bio", "linkin.bio",
	"tinyurl.com", "goo.gl", "t.co", "shop.link",
}

// likelyCommerce reports whether a URL plausibly points at a
// purchasable product. Social and CDN hosts are always rejected;
// everything else passes if the URL carries a commerce indicator or
// sits behind a known shortener.
func likelyCommerce(raw string) bool {
	lower := strings.ToLower(raw)

	host := lower
	if u, err := url.Parse(lower); err == nil && u.Host != "" {
		host = u.Host
	}

	for _, excluded := range excludedDomains {
		if strings.Contains(host, excluded) {
			return false
		}
	}

	for _, indicator := range commerceIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	return isShortener(host)
}

func isShortener(host string) bool {
	host = strings.ToLower(host)
	for _, s := range shortenerDomains {
		if strings.Contains(host, s) {
			return true
		}
	}
	return false
}
