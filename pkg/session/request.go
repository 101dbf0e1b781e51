package session

import (
	"net"
	"net/http"
	"strings"

	"github.com/tendant/simple-account/pkg/token"
)

// DeviceIDHeader is the client-supplied device identifier bound to tokens
// at creation and enforced on session use.
const DeviceIDHeader = "X-Device-Id"

// RequestInfoFromHTTP collects the client metadata recorded on every token.
func RequestInfoFromHTTP(r *http.Request) token.RequestInfo {
	info := token.RequestInfo{
		IP:       clientIP(r),
		DeviceID: r.Header.Get(DeviceIDHeader),
	}
	if agent := r.UserAgent(); agent != "" {
		info.UserAgentInfo = map[string]interface{}{"userAgent": agent}
	}
	return info
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
