package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"
)

// HMACAuth holds the L2 API credentials returned by key derivation.
type HMACAuth struct {
	Key        string
	Secret     string // URL-safe or standard base64
	Passphrase string
}

// Apply sets the L2 auth headers on req for the given wallet address and raw
// body, signed at the current time.
func (h *HMACAuth) Apply(req *http.Request, address, body string) {
	for k, v := range h.Headers(address, req.Method, req.URL.RequestURI(), body, time.Now()) {
		req.Header[k] = v
	}
}

// Headers computes the L2 headers. The signature is the base64 HMAC-SHA256
// of timestamp+method+path+body keyed by the decoded secret.
func (h *HMACAuth) Headers(address, method, path, body string, at time.Time) http.Header {
	ts := strconv.FormatInt(at.Unix(), 10)

	mac := hmac.New(sha256.New, h.secretBytes())
	mac.Write([]byte(ts + method + path + body))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	hdr := http.Header{}
	hdr["POLY_ADDRESS"] = []string{address}
	hdr["POLY_API_KEY"] = []string{h.Key}
	hdr["POLY_PASSPHRASE"] = []string{h.Passphrase}
	hdr["POLY_TIMESTAMP"] = []string{ts}
	hdr["POLY_SIGNATURE"] = []string{sig}
	return hdr
}

func (h *HMACAuth) secretBytes() []byte {
	if b, err := base64.URLEncoding.DecodeString(h.Secret); err == nil {
		return b
	}
	if b, err := base64.StdEncoding.DecodeString(h.Secret); err == nil {
		return b
	}
	return []byte(h.Secret)
}

// String redacts the credentials.
func (h *HMACAuth) String() string {
	mask := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return "HMACAuth{key=" + mask(h.Key) + ", secret=" + mask(h.Secret) + "}"
}
