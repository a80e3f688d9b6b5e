package store

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shalu066900/pykms/internal/wire"
)

// parseGUID parses the canonical hyphenated hex form produced by
// wire.GUID.String back into a GUID, for round-tripping through the
// SQLite string column.
func parseGUID(s string) (wire.GUID, error) {
	hexOnly := strings.ReplaceAll(s, "-", "")
	b, err := hex.DecodeString(hexOnly)
	if err != nil || len(b) != 16 {
		return wire.GUID{}, fmt.Errorf("store: invalid guid %q: %w", s, err)
	}
	var g wire.GUID
	copy(g[:], b)
	return g, nil
}

func unixNanoToTime(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
