package athena

import (
	"strconv"

	"github.com/prestodb/presto-go-client/presto"
)

// serial renders a Go value as a Presto SQL literal for interpolation into
// query text. Athena has no server-side parameter binding on this path, so
// every caller-supplied value goes through here.
func serial(v interface{}) (string, error) {
	switch x := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	}

	return presto.Serial(v)
}
