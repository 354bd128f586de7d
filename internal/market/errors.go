package market

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a marketplace failure.
type Kind int

const (
	// KindTransient covers network errors, timeouts and HTTP 5xx.
	KindTransient Kind = iota + 1
	// KindStaleToken means the signing token expired and retries ran out.
	KindStaleToken
	// KindExpiredSession means the credential itself is dead.
	KindExpiredSession
	// KindBusiness is any other non-success ret.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindStaleToken:
		return "stale_token"
	case KindExpiredSession:
		return "expired_session"
	case KindBusiness:
		return "business"
	default:
		return "unknown"
	}
}

// Error is returned by every Client call that did not succeed.
type Error struct {
	Kind Kind
	API  string
	Ret  []string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "market %s: %s", e.API, e.Kind)
	if len(e.Ret) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Ret, ","))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return 0
}

// IsStaleToken reports whether err is a stale-token failure.
func IsStaleToken(err error) bool { return KindOf(err) == KindStaleToken }

// IsExpiredSession reports whether err means the credential is dead.
func IsExpiredSession(err error) bool { return KindOf(err) == KindExpiredSession }

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// ErrRecentlyConfirmed is returned by ConfirmShipment when the order was
// confirmed within the dedupe window.
var ErrRecentlyConfirmed = errors.New("order recently confirmed")

// ErrNoToken is returned by RefreshToken when the response lacks a token.
var ErrNoToken = errors.New("no access token in response")

var (
	staleMarkers   = []string{"FAIL_SYS_TOKEN_EXOIRED", "FAIL_SYS_TOKEN_EXPIRED", "FAIL_SYS_TOKEN_EMPTY", "令牌过期"}
	sessionMarkers = []string{"FAIL_SYS_SESSION_EXPIRED", "Session过期"}
)

const successMarker = "SUCCESS::调用成功"

func anyContains(ret []string, markers []string) bool {
	for _, r := range ret {
		for _, m := range markers {
			if strings.Contains(r, m) {
				return true
			}
		}
	}
	return false
}
