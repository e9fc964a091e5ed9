package security

import (
	"encoding/base64"
	"net/http"

	"github.com/gabrielmiguelok/crimedesk/pkg/state"
)

// Flash categories.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

const flashCookie = "_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `msgpack:"c"`
	Message  string `msgpack:"m"`
}

var flashCodec = state.NewMsgPackSerializer()

// AddFlash queues a message for the next page. Messages queued earlier in
// the same request or by a previous request are kept.
func AddFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	flashes := append(readFlashes(r), Flash{Category: category, Message: message})

	data, err := flashCodec.Marshal(flashes)
	if err != nil {
		return
	}
	value := base64.RawURLEncoding.EncodeToString(data)

	// Later reads in this request see the queued message too.
	r.AddCookie(&http.Cookie{Name: flashCookie, Value: value})
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopFlashes returns the queued messages and clears them.
func PopFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	flashes := readFlashes(r)
	if len(flashes) == 0 {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return flashes
}

func readFlashes(r *http.Request) []Flash {
	var value string
	// The most recent cookie wins when AddFlash ran earlier in this request.
	for _, c := range r.Cookies() {
		if c.Name == flashCookie {
			value = c.Value
		}
	}
	if value == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := flashCodec.Unmarshal(data, &flashes); err != nil {
		return nil
	}
	return flashes
}
