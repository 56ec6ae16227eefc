package blobstore

import (
	"net/url"
	"strings"
)

// CleanHost strips any scheme and surrounding slashes from a website host.
func CleanHost(host string) string {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.Trim(host, "/")
}

// ObjectURL is the https URL of key on the website host.
func ObjectURL(host, key string) string {
	return "https://" + CleanHost(host) + "/" + strings.TrimPrefix(key, "/")
}

// ViewerURL opens key in the hosted markmap viewer page.
func ViewerURL(host, key string) string {
	return "https://" + CleanHost(host) + "/index.html?file=" + url.QueryEscape(key)
}

// WebAppURL normalizes a link for use as a chat web-app button. Empty or
// non-http links fall back to the viewer index page and http is upgraded
// to https.
func WebAppURL(host, link string) string {
	link = strings.TrimSpace(link)
	if !strings.Contains(link, "http") {
		return "https://" + CleanHost(host) + "/index.html"
	}
	if strings.HasPrefix(link, "http://") {
		return "https://" + strings.TrimPrefix(link, "http://")
	}
	return link
}
