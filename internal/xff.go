package internal

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/sebest/xff"
)

// RemoteXRealIP fills in the X-Real-Ip header from the socket's remote
// address. Useful when Ladybug is directly exposed instead of sitting
// behind a load balancer.
func RemoteXRealIP(useRemoteAddress bool, bindNetwork string, next http.Handler) http.Handler {
	if !useRemoteAddress {
		return next
	}

	if bindNetwork == "unix" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Set("X-Real-Ip", "127.0.0.1")
			next.ServeHTTP(w, r)
		})
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		r.Header.Set("X-Real-Ip", host)
		next.ServeHTTP(w, r)
	})
}

// XForwardedForToXRealIP sets X-Real-Ip from the rightmost public entry of
// X-Forwarded-For when the upstream proxy did not set X-Real-Ip itself.
func XForwardedForToXRealIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Real-Ip") == "" && r.Header.Get("X-Forwarded-For") != "" {
			ip := xff.Parse(r.Header.Get("X-Forwarded-For"))
			if ip != "" {
				r.Header.Set("X-Real-Ip", ip)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// XForwardedForUpdate appends the socket address to X-Forwarded-For,
// optionally dropping private-range entries first so upstream services only
// see routable client addresses.
func XForwardedForUpdate(stripPrivate bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		var forwarded []string
		if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
			for _, entry := range strings.Split(prior, ",") {
				entry = strings.TrimSpace(entry)
				if entry == "" {
					continue
				}
				if stripPrivate && isPrivate(entry) {
					continue
				}
				forwarded = append(forwarded, entry)
			}
		}
		forwarded = append(forwarded, host)
		r.Header.Set("X-Forwarded-For", strings.Join(forwarded, ", "))

		next.ServeHTTP(w, r)
	})
}

func isPrivate(host string) bool {
	addr := net.ParseIP(host)
	if addr == nil {
		slog.Debug("dropping unparseable X-Forwarded-For entry", "entry", host)
		return true
	}
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
