// Package platform implements application sessions for job sites. Each
// adapter drives a site's HTML application form over plain HTTP.
package platform

import (
	"net/url"
	"strings"
)

// Platform names returned by Detect.
const (
	LinkedIn   = "linkedin"
	Naukri     = "naukri"
	Workday    = "workday"
	Greenhouse = "greenhouse"
	Lever      = "lever"
	Indeed     = "indeed"
	Aggregator = "aggregator"
	Generic    = "generic"
)

var aggregatorHosts = []string{
	"simplyhired", "talent.com", "jobrapido", "bebee.com",
	"builtin.com", "remote.co", "talentify",
}

// Detect maps a posting URL to the platform that hosts its application.
// Unrecognised or malformed URLs map to Generic.
func Detect(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return Generic
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case hostIs(host, "linkedin.com"):
		return LinkedIn
	case hostIs(host, "naukri.com"):
		return Naukri
	case hostIs(host, "myworkdayjobs.com"), hostIs(host, "workday.com"),
		strings.Contains(host, "wd1."), strings.Contains(host, "wd3."), strings.Contains(host, "wd5."):
		return Workday
	case hostIs(host, "greenhouse.io"):
		return Greenhouse
	case hostIs(host, "lever.co"):
		return Lever
	case hostIs(host, "indeed.com"), strings.HasPrefix(host, "indeed.") || strings.Contains(host, ".indeed."):
		return Indeed
	}
	for _, agg := range aggregatorHosts {
		if strings.Contains(host, agg) {
			return Aggregator
		}
	}
	return Generic
}

// hostIs reports whether host is domain or one of its subdomains.
func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
