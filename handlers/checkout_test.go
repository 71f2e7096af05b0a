package handlers

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"house-alert-api/config"
	"house-alert-api/services/ecpay"
)

var hiddenInput = regexp.MustCompile(`<input type="hidden" name="([^"]+)" value="([^"]*)">`)

func sandboxGateway() *ecpay.Gateway {
	return ecpay.NewGateway(ecpay.Config{
		MerchantID: config.SandboxMerchantID,
		HashKey:    config.SandboxHashKey,
		HashIV:     config.SandboxHashIV,
		BaseURL:    "https://alerts.example.com",
	})
}

func formFields(t *testing.T, page string) map[string]string {
	t.Helper()
	fields := map[string]string{}
	for _, m := range hiddenInput.FindAllStringSubmatch(page, -1) {
		fields[m[1]] = html.UnescapeString(m[2])
	}
	require.NotEmpty(t, fields, "no hidden inputs in %s", page)
	return fields
}

// recomputeCheckMac signs fields from scratch: sorted pairs wrapped in the
// hash key and IV, .NET UrlEncode, lower-cased, MD5, upper-cased hex.
func recomputeCheckMac(fields map[string]string, hashKey, hashIV string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := []string{"HashKey=" + hashKey}
	for _, name := range names {
		pairs = append(pairs, name+"="+fields[name])
	}
	pairs = append(pairs, "HashIV="+hashIV)

	var encoded strings.Builder
	for _, c := range []byte(strings.Join(pairs, "&")) {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', strings.IndexByte("-_.!*()", c) >= 0:
			encoded.WriteByte(c)
		case c == ' ':
			encoded.WriteByte('+')
		default:
			fmt.Fprintf(&encoded, "%%%02x", c)
		}
	}

	sum := md5.Sum([]byte(strings.ToLower(encoded.String())))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func TestRecomputeCheckMacKnownVector(t *testing.T) {
	got := recomputeCheckMac(map[string]string{"B": "a b", "A": "x~y!z*(1)'"}, "k", "v")
	assert.Equal(t, "035617768F006CAED1112D6D35808140", got)
}

type countingBuilder struct {
	calls int
}

func (c *countingBuilder) NewOrder(planID, userID string) (*ecpay.Order, error) {
	c.calls++
	return nil, assert.AnError
}

func postCheckout(h *CheckoutHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.CreateCheckout(rec, req)
	return rec
}

func TestCheckoutChecksumMatchesIndependentRecomputation(t *testing.T) {
	h := NewCheckoutHandler(sandboxGateway())

	for _, plan := range []string{"standard", "pro", "unlimited"} {
		t.Run(plan, func(t *testing.T) {
			rec := postCheckout(h, `{"planId":"`+plan+`","userId":"firebase-uid-0123456789"}`)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
			assert.Contains(t, rec.Body.String(), `action="`+ecpay.StagingEndpoint+`"`)

			fields := formFields(t, rec.Body.String())
			emitted := fields[ecpay.CheckMacField]
			delete(fields, ecpay.CheckMacField)

			assert.Equal(t, recomputeCheckMac(fields, config.SandboxHashKey, config.SandboxHashIV), emitted)
			assert.LessOrEqual(t, utf8.RuneCountInString(fields["MerchantTradeNo"]), ecpay.MaxTradeNoLength)
			assert.Equal(t, "https://alerts.example.com"+ecpay.CallbackPath, fields["ReturnURL"])
		})
	}
}

func TestCheckoutTradeNoBoundedForLongUserIDs(t *testing.T) {
	h := NewCheckoutHandler(sandboxGateway())
	rec := postCheckout(h, `{"planId":"unlimited","userId":"`+strings.Repeat("使用者", 40)+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	fields := formFields(t, rec.Body.String())
	assert.LessOrEqual(t, utf8.RuneCountInString(fields["MerchantTradeNo"]), ecpay.MaxTradeNoLength)
}

func TestCheckoutMissingFieldsComputesNothing(t *testing.T) {
	for _, body := range []string{`{}`, `{"planId":"pro"}`, `{"userId":"u1"}`, `{"planId":"","userId":"u1"}`} {
		builder := &countingBuilder{}
		rec := postCheckout(NewCheckoutHandler(builder), body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Missing planId or userId"}`, rec.Body.String())
		assert.Zero(t, builder.calls, body)
	}
}

func TestCheckoutInvalidPlan(t *testing.T) {
	for _, plan := range []string{"free", "platinum"} {
		rec := postCheckout(NewCheckoutHandler(sandboxGateway()), `{"planId":"`+plan+`","userId":"u1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid plan"}`, rec.Body.String())
	}
}

func TestCheckoutMalformedBody(t *testing.T) {
	rec := postCheckout(NewCheckoutHandler(sandboxGateway()), `{"planId":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutUnexpectedFault(t *testing.T) {
	rec := postCheckout(NewCheckoutHandler(&countingBuilder{}), `{"planId":"pro","userId":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}
