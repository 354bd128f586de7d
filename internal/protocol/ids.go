package protocol

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// deviceNS namespaces device ids so they never collide with other
// name-based UUIDs derived from the same user id.
var deviceNS = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://www.goofish.com/device"))

// DeviceID derives the stable device id of a seller: a UUID-shaped value
// computed from unb, suffixed with "-<unb>".
func DeviceID(unb string) string {
	return uuid.NewSHA1(deviceNS, []byte(unb)).String() + "-" + unb
}

// NewMid returns a message id: a random 0..999 prefix, epoch millis and the
// literal " 0" suffix.
func NewMid(now time.Time) string {
	return strconv.Itoa(rand.IntN(1000)) + strconv.FormatInt(now.UnixMilli(), 10) + " 0"
}

// NewMessageUUID returns the client-side message uuid "-<millis>1".
func NewMessageUUID(now time.Time) string {
	return "-" + strconv.FormatInt(now.UnixMilli(), 10) + "1"
}
