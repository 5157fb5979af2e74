package crawler

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rs/zerolog/log"
)

// Selectors tried when the record's locator matches nothing.
var fallbackSelectors = []string{
	`.priceView-hero-price span[aria-hidden="true"]`,
	`[data-testid="customer-price"] span`,
	`[itemprop="price"]`,
}

// ParsePrice returns the text of the first element matching locator, then
// the fallback selectors. It returns ErrNotFound when nothing matches.
// A locator that is not valid CSS is skipped.
func ParsePrice(r io.Reader, locator string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", &Error{Class: ErrNavigation, Err: err}
	}

	var matchers []goquery.Matcher
	if locator = strings.TrimSpace(locator); locator != "" {
		if sel, err := cascadia.Compile(locator); err == nil {
			matchers = append(matchers, sel)
		} else {
			log.Debug().Str("locator", locator).Err(err).Msg("locator is not a css selector, using fallbacks")
		}
	}
	for _, s := range fallbackSelectors {
		matchers = append(matchers, cascadia.MustCompile(s))
	}

	for _, m := range matchers {
		s := doc.FindMatcher(m).First()
		if s.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			if v, ok := s.Attr("content"); ok {
				text = strings.TrimSpace(v)
			}
		}
		if text != "" {
			return text, nil
		}
	}
	return "", &Error{Class: ErrNotFound}
}
