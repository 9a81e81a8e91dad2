package models

import (
	"github.com/mssola/useragent"
)

// Source describes where a submission came from. Kept for fraud review only.
type Source struct {
	IP             string `json:"ip,omitempty"`
	UserAgent      string `json:"userAgent,omitempty"`
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browserVersion,omitempty"`
	OS             string `json:"os,omitempty"`
	Mobile         bool   `json:"mobile,omitempty"`
	Bot            bool   `json:"bot,omitempty"`
}

// NewSource parses the User-Agent header.
func NewSource(ip, userAgent string) Source {
	s := Source{IP: ip, UserAgent: userAgent}
	if userAgent == "" {
		return s
	}
	ua := useragent.New(userAgent)
	s.Browser, s.BrowserVersion = ua.Browser()
	s.OS = ua.OS()
	s.Mobile = ua.Mobile()
	s.Bot = ua.Bot()
	return s
}
