package credentials

import (
	"errors"
	"sort"
	"strings"
	"unicode"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

func sortedCopy(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// envPrefix maps a reference to an environment variable prefix:
// "acr-prod.sp" → "ACR_PROD_SP".
func envPrefix(id string) string {
	var b strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
