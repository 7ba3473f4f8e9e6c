// Package fingerprint derives the stable identifier of an anonymous visitor.
package fingerprint

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-commerce-cart/api/web"
	"golang.org/x/crypto/blake2b"
)

const sessionKey = "fingerprint"

type ctxKey int

const fingerprintKey ctxKey = 1

func Set(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, fingerprintKey, fp)
}

func Get(ctx context.Context) string {
	fp, _ := ctx.Value(fingerprintKey).(string)
	return fp
}

// Compute hashes the request metadata that identifies a browser.
func Compute(r *http.Request, clientIP string) string {
	h, _ := blake2b.New256(nil)

	for _, part := range []string{
		r.UserAgent(),
		r.Header.Get("Accept-Language"),
		clientIP,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Proxies resolves the client address behind the configured reverse proxies.
// X-Forwarded-For is only read when the socket peer is one of them.
type Proxies struct {
	trusted []netip.Prefix
}

// NewProxies parses the trusted proxy ranges. Bare addresses are accepted
// as single host prefixes.
func NewProxies(cidrs []string) (*Proxies, error) {
	p := &Proxies{}
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}

		if !strings.Contains(c, "/") {
			addr, err := netip.ParseAddr(c)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", c, err)
			}
			p.trusted = append(p.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		prefix, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", c, err)
		}
		p.trusted = append(p.trusted, prefix.Masked())
	}
	return p, nil
}

func (p *Proxies) isTrusted(ip string) bool {
	if p == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, t := range p.trusted {
		if t.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP walks X-Forwarded-For from the nearest hop and returns the first
// address that is not a trusted proxy. Untrusted peers get their socket
// address whatever headers they send.
func (p *Proxies) ClientIP(r *http.Request) string {
	ip := SocketIP(r)
	if !p.isTrusted(ip) {
		return ip
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !p.isTrusted(hop) {
			return hop
		}
		ip = hop
	}
	return ip
}

// SocketIP is the address of the peer that opened the connection.
func SocketIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware pins the fingerprint in the session on first sight so the
// visitor keeps it even when the request metadata drifts.
func Middleware(sm *scs.SessionManager, proxies *Proxies) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			fp := sm.GetString(ctx, sessionKey)
			if fp == "" {
				fp = Compute(r, proxies.ClientIP(r))
				sm.Put(ctx, sessionKey, fp)
			}

			ctx = Set(ctx, fp)
			return handler(ctx, w, r.WithContext(ctx))
		}
		return h
	}
	return m
}
