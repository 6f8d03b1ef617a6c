package usage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// HeaderName is the response header carrying traffic usage.
const HeaderName = "subscription-userinfo"

// ParseHeader splits "upload=N; download=N; total=N; expire=N" into a
// mapping. Empty items are skipped; each item splits on its first '='.
func ParseHeader(header string) map[string]string {
	info := make(map[string]string)
	for _, item := range strings.Split(header, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, _ := strings.Cut(item, "=")
		info[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return info
}

// Usage is the typed view of a usage mapping. Expire is a unix
// timestamp in seconds, zero when the subscription never expires.
type Usage struct {
	Upload   int64
	Download int64
	Total    int64
	Expire   int64
}

// Parse converts a raw mapping into a Usage record. Missing keys stay
// zero; malformed numbers are reported.
func Parse(info map[string]string) (Usage, error) {
	var u Usage
	fields := []struct {
		key string
		dst *int64
	}{
		{"upload", &u.Upload},
		{"download", &u.Download},
		{"total", &u.Total},
		{"expire", &u.Expire},
	}
	for _, f := range fields {
		raw, ok := info[f.key]
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Usage{}, fmt.Errorf("invalid %s value %q: %w", f.key, raw, err)
		}
		*f.dst = int64(n)
	}
	return u, nil
}

func (u Usage) Used() int64 {
	return u.Upload + u.Download
}

func (u Usage) Remaining() int64 {
	if u.Total <= 0 {
		return 0
	}
	if r := u.Total - u.Used(); r > 0 {
		return r
	}
	return 0
}

func (u Usage) ExpiresAt() (time.Time, bool) {
	if u.Expire <= 0 {
		return time.Time{}, false
	}
	return time.Unix(u.Expire, 0), true
}

// String renders the record the way the catalog shows it in a row.
func (u Usage) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s / %s", humanize.IBytes(uint64(u.Used())), humanize.IBytes(uint64(u.Total)))
	if at, ok := u.ExpiresAt(); ok {
		fmt.Fprintf(&b, " · expires %s", at.UTC().Format("2006-01-02"))
	}
	return b.String()
}
