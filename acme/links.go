package acme

import (
	"crypto/x509"
	"encoding/pem"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// parseRetryAfter accepts both the delay-seconds and HTTP-date forms RFC
// 7231 §7.1.3 allows.
func parseRetryAfter(value string) (time.Duration, bool) {
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := parseHTTPDate(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			return 0, false
		}
		return d, true
	}
	return 0, false
}

// parseHTTPDate parses the HTTP-date formats a Retry-After header may use.
func parseHTTPDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, time.ANSIC} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadRetryAfter
}

var errBadRetryAfter = &Problem{Type: "about:blank", Detail: "unparseable Retry-After header"}

var linkAlternateRe = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?alternate"?`)

// parseAlternateLinks extracts every URL from a Link header carrying
// rel="alternate", as RFC 8555 §7.4.2 uses for alternate certificate
// chains.
func parseAlternateLinks(header string) []string {
	if header == "" {
		return nil
	}
	var urls []string
	for _, m := range linkAlternateRe.FindAllStringSubmatch(header, -1) {
		urls = append(urls, m[1])
	}
	return urls
}

// chainRootCN returns the issuer CommonName of the last certificate in a
// PEM chain (the name of the root it chains to), or "" if the chain is
// empty or malformed.
func chainRootCN(pemChain []byte) string {
	var lastCN string
	rest := pemChain
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		lastCN = cert.Issuer.CommonName
	}
	return lastCN
}
