package patterns

import "strings"

// Known URL shortener hosts. Shorteners are not malicious by themselves but
// hide the destination, so every stage treats them as a risk multiplier.
var shortenerHosts = map[string]bool{
	"bit.ly":       true,
	"tinyurl.com":  true,
	"t.co":         true,
	"goo.gl":       true,
	"is.gd":        true,
	"buff.ly":      true,
	"ow.ly":        true,
	"rb.gy":        true,
	"cutt.ly":      true,
	"shorturl.at":  true,
	"tiny.cc":      true,
	"rebrand.ly":   true,
	"t.ly":         true,
	"lnkd.in":      true,
	"s.id":         true,
	"v.gd":         true,
	"qr.ae":        true,
	"soo.gd":       true,
	"bl.ink":       true,
	"short.io":     true,
	"tr.im":        true,
	"snip.ly":      true,
	"urlzs.com":    true,
	"shorte.st":    true,
	"adf.ly":       true,
	"clck.ru":      true,
	"surl.li":      true,
	"han.gl":       true,
	"me2.kr":       true,
	"linktr.ee":    false, // Link aggregator, not a true redirector
	"shrtco.de":    true,
	"chilp.it":     true,
	"u.to":         true,
	"x.co":         true,
	"1url.com":     true,
	"zpr.io":       true,
	"vzturl.com":   true,
	"qps.ru":       true,
	"tinu.be":      true,
	"l.ead.me":     true,
	"shorturl.com": true,
}

// IsShortenerHost reports whether host is a known URL shortener.
// The port, leading "www." and case are ignored.
func IsShortenerHost(host string) bool {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	return shortenerHosts[host]
}
