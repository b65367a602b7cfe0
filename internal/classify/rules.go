package classify

import (
	"strings"

	"botgate/internal/signals"
)

// allowedBots are user-agent markers for trusted crawlers and link-preview
// bots. A match short-circuits classification: these clients bypass scoring
// and rate limiting entirely.
var allowedBots = []string{
	"googlebot",
	"bingbot",
	"duckduckbot",
	"slackbot",
	"twitterbot",
	"facebookexternalhit",
	"linkedinbot",
	"discordbot",
	"whatsapp",
	"telegrambot",
	"applebot",
	"yandexbot",
	"baiduspider",
}

// automationMarkers match generic crawler keywords and the default user
// agents of common HTTP client libraries.
var automationMarkers = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"curl",
	"wget",
	"python-requests",
	"python-urllib",
	"go-http-client",
	"java/",
	"okhttp",
	"httpclient",
	"libwww",
	"axios",
	"node-fetch",
	"headless",
	"phantomjs",
	"selenium",
	"puppeteer",
	"playwright",
}

// scriptMarkers identify scripting-language runtimes that rarely appear in a
// real browser user agent.
var scriptMarkers = []string{
	"python",
	"ruby",
	"perl",
	"php",
	"lua-resty",
}

// browserMarkers are substrings every mainstream browser UA carries at least
// one of. Used to suppress the script-marker rule for genuine browsers.
var browserMarkers = []string{
	"mozilla",
	"chrome",
	"safari",
	"firefox",
	"edg",
	"opera",
}

// acceptedTypes are the content types a browser-originated request for this
// application would negotiate for.
var acceptedTypes = []string{"text/html", "application/json", "*/*"}

// rule is one weighted classification signal. Rules are independent and
// additive; evaluation order only affects the order of reasons, not the score.
type rule struct {
	reason string
	weight int
	match  func(sig signals.Signals) bool
}

// scoringRules is the full rule table, evaluated after the allowlist check.
var scoringRules = []rule{
	{
		reason: "automation tool user agent",
		weight: 30,
		match: func(sig signals.Signals) bool {
			return sig.UserAgent != "" && containsAny(strings.ToLower(sig.UserAgent), automationMarkers)
		},
	},
	{
		reason: "missing user agent",
		weight: 40,
		match: func(sig signals.Signals) bool {
			return sig.UserAgent == ""
		},
	},
	{
		reason: "missing accept header",
		weight: 20,
		match: func(sig signals.Signals) bool {
			return sig.Accept == ""
		},
	},
	{
		reason: "missing accept-language header",
		weight: 15,
		match: func(sig signals.Signals) bool {
			return sig.AcceptLanguage == ""
		},
	},
	{
		reason: "missing accept-encoding header",
		weight: 15,
		match: func(sig signals.Signals) bool {
			return sig.AcceptEncoding == ""
		},
	},
	{
		reason: "accept header lacks browser content types",
		weight: 20,
		match: func(sig signals.Signals) bool {
			return sig.Accept != "" && !containsAny(strings.ToLower(sig.Accept), acceptedTypes)
		},
	},
	{
		reason: "implausibly short user agent",
		weight: 25,
		match: func(sig signals.Signals) bool {
			return sig.UserAgent != "" && len(sig.UserAgent) < 10
		},
	},
	{
		reason: "scripting language marker without browser marker",
		weight: 35,
		match: func(sig signals.Signals) bool {
			ua := strings.ToLower(sig.UserAgent)
			return containsAny(ua, scriptMarkers) && !containsAny(ua, browserMarkers)
		},
	},
}

// isAllowedBot reports whether the user agent matches the trusted-crawler
// allowlist.
func isAllowedBot(userAgent string) bool {
	return containsAny(strings.ToLower(userAgent), allowedBots)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
