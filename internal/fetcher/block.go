package fetcher

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot response detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockForbidden  BlockType = "forbidden"
)

// Challenge and captcha interstitials are small; full result pages can
// mention captcha in their scripts, so content markers are only trusted
// below this size.
const challengeMaxSize = 64 << 10

// DetectBlock inspects a response and its body for an anti-bot page instead
// of search results.
func DetectBlock(resp *http.Response, body string) BlockType {
	if resp == nil {
		return BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return BlockCloudflare
		}
	}

	if len(body) <= challengeMaxSize {
		if bt := detectChallenge(body); bt != BlockNone {
			return bt
		}
	}

	if resp.StatusCode == http.StatusForbidden {
		return BlockForbidden
	}
	return BlockNone
}

func detectChallenge(body string) BlockType {
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "checking your browser"),
		strings.Contains(lower, "cf-browser-verification"),
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge"):
		return BlockCloudflare
	case strings.Contains(lower, "captcha"):
		return BlockCaptcha
	}

	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return BlockJSShell
		}
	}
	return BlockNone
}
