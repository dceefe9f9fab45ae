package client

import (
	"net/http"
	"time"

	"radio-manager/work/config"
)

// HeadTimeout bounds the preliminary HEAD request of a probe. It is shorter
// than the configured check timeout because HEAD only has to resolve redirects
// and many ICY servers ignore it anyway.
const HeadTimeout = 5 * time.Second

// HeaderSettingClient wraps http.Client to set the headers radio servers
// expect: a browser-ish User-Agent and the ICY metadata opt-in. Connections
// are closed after each probe since a checked stream is never reused.
type HeaderSettingClient struct {
	Client *http.Client
	config *config.Config
}

// New builds a probe client with the given overall timeout. The timeout
// covers the whole exchange including the body sample read, which is how a
// stalled stream gets classified as a timeout.
func New(cfg *config.Config, timeout time.Duration) *HeaderSettingClient {
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			DisableKeepAlives:     true,
			ResponseHeaderTimeout: timeout,
		},
	}

	return &HeaderSettingClient{
		Client: client,
		config: cfg,
	}
}

func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	hsc.setHeaders(req)
	return hsc.Client.Do(req)
}

func (hsc *HeaderSettingClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", hsc.config.UserAgent)
	req.Header.Set("Icy-MetaData", "1")
	req.Header.Set("Connection", "close")
	req.Header.Set("Accept", "*/*")
}
