package services

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const orderNumberPrefix = "MH"

// OrderNumberGenerator produces a human-facing order number for the given
// placement time. Numbers are not coordinated across instances; uniqueness is
// enforced at insert time by the order store.
type OrderNumberGenerator func(now time.Time) string

// DefaultOrderNumberGenerator combines the UTC order date with the random tail
// of a freshly minted ULID, e.g. MH-20250305-9GXT4K8Q.
func DefaultOrderNumberGenerator() OrderNumberGenerator {
	return func(now time.Time) string {
		now = now.UTC()
		id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
		suffix := id[len(id)-8:]
		return orderNumberPrefix + "-" + now.Format("20060102") + "-" + strings.ToUpper(suffix)
	}
}
