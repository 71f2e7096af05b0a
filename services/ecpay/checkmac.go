package ecpay

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

const CheckMacField = "CheckMacValue"

// The gateway hashes the .NET UrlEncode form of the payload, which keeps
// these characters literal and escapes '~'.
var dotNetUnescape = strings.NewReplacer(
	"%21", "!",
	"%2a", "*",
	"%28", "(",
	"%29", ")",
	"~", "%7e",
)

func encodeForCheckMac(s string) string {
	return dotNetUnescape.Replace(strings.ToLower(url.QueryEscape(s)))
}

// CheckMacValue signs params with the merchant hash key and IV. Any
// CheckMacValue already present in params is ignored.
func CheckMacValue(params map[string]string, hashKey, hashIV string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == CheckMacField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("HashKey=")
	b.WriteString(hashKey)
	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	b.WriteString("&HashIV=")
	b.WriteString(hashIV)

	sum := md5.Sum([]byte(encodeForCheckMac(b.String())))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// VerifyCheckMacValue reports whether params carry a valid signature.
func VerifyCheckMacValue(params map[string]string, hashKey, hashIV string) bool {
	got := strings.ToUpper(params[CheckMacField])
	if got == "" {
		return false
	}
	want := CheckMacValue(params, hashKey, hashIV)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
