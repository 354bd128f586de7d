// Package protocol holds the wire-level pieces shared by the marketplace
// HTTP client and the push connection: request signing, cookie-jar blobs,
// identifiers, the websocket envelopes and the sync-frame decoder.
package protocol

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// H5AppKey is the application key used by the signed H5 RPCs.
const H5AppKey = "34839810"

// Sign computes md5(token&t&appKey&data) as lowercase hex. data must be the
// exact JSON string sent in the form body.
func Sign(t, token, data string) string {
	sum := md5.Sum([]byte(token + "&" + t + "&" + H5AppKey + "&" + data))
	return hex.EncodeToString(sum[:])
}

// Millis formats ts as epoch milliseconds.
func Millis(ts time.Time) string {
	return strconv.FormatInt(ts.UnixMilli(), 10)
}

// SignToken extracts the signing token from a cookie blob: the _m_h5_tk
// value truncated at the first underscore. Missing cookie yields "".
func SignToken(blob string) string {
	tk := CookieValue(blob, "_m_h5_tk")
	if i := strings.IndexByte(tk, '_'); i >= 0 {
		return tk[:i]
	}
	return tk
}
