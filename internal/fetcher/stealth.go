package fetcher

import (
	"net/http"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// pageProfile is the identity a rendered page presents to the target site.
type pageProfile struct {
	UserAgent      string
	AcceptLanguage string
	ViewportWidth  int
	ViewportHeight int
	Headers        http.Header
}

// apply sets user agent, viewport and extra headers on a fresh page.
func (p pageProfile) apply(page *rod.Page) error {
	if p.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      p.UserAgent,
			AcceptLanguage: p.AcceptLanguage,
		})
		if err != nil {
			return err
		}
	}

	if p.ViewportWidth > 0 && p.ViewportHeight > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             p.ViewportWidth,
			Height:            p.ViewportHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			return err
		}
	}

	headers := make([]string, 0, len(p.Headers)*2)
	for k, vals := range p.Headers {
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			continue
		}
		for _, v := range vals {
			headers = append(headers, k, v)
		}
	}
	if len(headers) > 0 {
		if _, err := page.SetExtraHeaders(headers); err != nil {
			return err
		}
	}
	return nil
}
