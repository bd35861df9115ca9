package query

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"backoffice/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s for accent and case insensitive matching: the text is
// decomposed, combining marks are dropped, and the result is lower-cased.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Stringify renders a column value the way it is matched by search.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case model.ID:
		return string(x)
	case decimal.Decimal:
		return x.String()
	case *decimal.Decimal:
		if x == nil {
			return ""
		}
		return x.String()
	case model.Date:
		return x.String()
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(model.DateLayout)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
