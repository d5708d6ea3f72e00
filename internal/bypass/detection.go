package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of a fetched page the detectors look at.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Detector examines a response to determine if a bot protection mechanism
// blocked or challenged the request.
type Detector func(res Response) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors,
// search-engine checks first.
func DefaultDetectors() []Detector {
	return []Detector{
		detectBingChallenge,
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
	}
}

// Analyze runs the response through the detectors and returns the source of
// the first one that fires, or "" when the page looks like a normal response.
func Analyze(res Response, detectors []Detector) string {
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return source
		}
	}
	return ""
}

// detectBingChallenge catches the captcha interstitial Bing serves with a 200
// status in place of results.
func detectBingChallenge(res Response) (bool, string) {
	if bytes.Contains(res.Body, []byte(`id="b_captcha"`)) ||
		bytes.Contains(res.Body, []byte("/challenge/verify")) ||
		bytes.Contains(res.Body, []byte("captcha.bing.com")) {
		return true, "Bing"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Headers.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}

// detectAkamai looks for Akamai Bot Manager signatures.
func detectAkamai(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Headers.Get("Server")), "akamai") {
		return true, "Akamai"
	}
	// Akamai often returns a generic "Reference #" block page
	if bytes.Contains(res.Body, []byte("Reference #")) && bytes.Contains(res.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Headers.Get("Server")), "datadome") ||
		res.Headers.Get("X-DataDome") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(res.Body, []byte("geo.captcha-delivery.com")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Headers.Get("X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	if bytes.Contains(res.Body, []byte("client.perimeterx.net")) ||
		bytes.Contains(res.Body, []byte("_pxBlock")) {
		return true, "PerimeterX"
	}
	return false, ""
}
