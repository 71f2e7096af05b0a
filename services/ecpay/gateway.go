package ecpay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"house-alert-api/models"
)

const (
	ProductionEndpoint = "https://payment.ecpay.com.tw/Cashier/AioCheckOut/V5"
	StagingEndpoint    = "https://payment-stage.ecpay.com.tw/Cashier/AioCheckOut/V5"

	CallbackPath = "/api/ecpay/callback"

	TradeNoPrefix      = "591"
	MaxTradeNoLength   = 20
	accountFragmentLen = 8

	TradeDateLayout = "2006/01/02 15:04:05"

	paymentType   = "aio"
	choosePayment = "Credit"
	encryptType   = "1"
	tradeDesc     = "591搶案神器訂閱"
)

var (
	ErrMissingFields = errors.New("missing planId or userId")
	ErrInvalidPlan   = errors.New("invalid plan")
)

// Taiwan has no daylight saving time.
var taipei = time.FixedZone("Asia/Taipei", 8*60*60)

type Config struct {
	MerchantID string
	HashKey    string
	HashIV     string
	Production bool
	BaseURL    string
}

type Gateway struct {
	merchantID string
	hashKey    string
	hashIV     string
	endpoint   string
	returnURL  string
	now        func() time.Time
}

func NewGateway(cfg Config) *Gateway {
	endpoint := StagingEndpoint
	if cfg.Production {
		endpoint = ProductionEndpoint
	}
	return &Gateway{
		merchantID: cfg.MerchantID,
		hashKey:    cfg.HashKey,
		hashIV:     cfg.HashIV,
		endpoint:   endpoint,
		returnURL:  strings.TrimRight(cfg.BaseURL, "/") + CallbackPath,
		now:        time.Now,
	}
}

func (g *Gateway) Endpoint() string {
	return g.endpoint
}

// Order is one signed checkout attempt. Fields holds every posted value
// including CheckMacValue.
type Order struct {
	Action          string
	MerchantTradeNo string
	Plan            models.Plan
	Fields          map[string]string
}

// fieldOrder is the order hidden inputs are rendered in.
var fieldOrder = []string{
	"MerchantID",
	"MerchantTradeNo",
	"MerchantTradeDate",
	"PaymentType",
	"TotalAmount",
	"TradeDesc",
	"ItemName",
	"ReturnURL",
	"ChoosePayment",
	"EncryptType",
	CheckMacField,
}

// NewOrder builds the signed payload for planID bought by userID.
func (g *Gateway) NewOrder(planID, userID string) (*Order, error) {
	if planID == "" || userID == "" {
		return nil, ErrMissingFields
	}
	plan, ok := models.PurchasablePlan(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlan, planID)
	}

	now := g.now()
	tradeNo := MerchantTradeNo(userID, planID, now)

	fields := map[string]string{
		"MerchantID":        g.merchantID,
		"MerchantTradeNo":   tradeNo,
		"MerchantTradeDate": now.In(taipei).Format(TradeDateLayout),
		"PaymentType":       paymentType,
		"TotalAmount":       strconv.Itoa(plan.Price),
		"TradeDesc":         tradeDesc,
		"ItemName":          fmt.Sprintf("591搶案神器 %s 方案", planID),
		"ReturnURL":         g.returnURL,
		"ChoosePayment":     choosePayment,
		"EncryptType":       encryptType,
	}
	fields[CheckMacField] = CheckMacValue(fields, g.hashKey, g.hashIV)

	return &Order{
		Action:          g.endpoint,
		MerchantTradeNo: tradeNo,
		Plan:            plan,
		Fields:          fields,
	}, nil
}

// Verify checks a gateway notification signed with this merchant's keys.
func (g *Gateway) Verify(params map[string]string) bool {
	return VerifyCheckMacValue(params, g.hashKey, g.hashIV)
}

// MerchantTradeNo is <prefix>_<first 8 chars of userID>_<planID>_<unix ms>,
// cut to the gateway's 20 character limit.
func MerchantTradeNo(userID, planID string, t time.Time) string {
	no := fmt.Sprintf("%s_%s_%s_%d", TradeNoPrefix, truncateRunes(userID, accountFragmentLen), planID, t.UnixMilli())
	return truncateRunes(no, MaxTradeNoLength)
}

// AccountFragment extracts the user id fragment from a merchant trade number.
func AccountFragment(tradeNo string) (string, bool) {
	rest, ok := strings.CutPrefix(tradeNo, TradeNoPrefix+"_")
	if !ok {
		return "", false
	}
	if i := strings.Index(rest, "_"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
