package ecpay

import (
	"fmt"
	"strconv"
	"time"
)

// RtnCodeSuccess marks a paid order in a payment notification.
const RtnCodeSuccess = "1"

const (
	CallbackAck    = "1|OK"
	CallbackReject = "0|CheckMacValue Error"
)

// Notification is the server-to-server result the gateway posts to ReturnURL.
type Notification struct {
	MerchantTradeNo string
	TradeNo         string
	RtnCode         string
	RtnMsg          string
	TradeAmt        int
	PaymentDate     time.Time
}

func (n *Notification) Paid() bool {
	return n.RtnCode == RtnCodeSuccess
}

// ParseNotification reads an already verified callback form.
func ParseNotification(params map[string]string) (*Notification, error) {
	n := &Notification{
		MerchantTradeNo: params["MerchantTradeNo"],
		TradeNo:         params["TradeNo"],
		RtnCode:         params["RtnCode"],
		RtnMsg:          params["RtnMsg"],
	}
	if n.MerchantTradeNo == "" {
		return nil, fmt.Errorf("notification missing MerchantTradeNo")
	}

	amount, err := strconv.Atoi(params["TradeAmt"])
	if err != nil {
		return nil, fmt.Errorf("notification has invalid TradeAmt %q: %w", params["TradeAmt"], err)
	}
	n.TradeAmt = amount

	if raw := params["PaymentDate"]; raw != "" {
		paidAt, err := ParseTradeDate(raw)
		if err != nil {
			return nil, err
		}
		n.PaymentDate = paidAt
	}
	return n, nil
}

// ParseTradeDate reads a gateway timestamp, which is always Taipei local time.
func ParseTradeDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TradeDateLayout, s, taipei)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid gateway date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// InTaipei converts t to the gateway's local time.
func InTaipei(t time.Time) time.Time {
	return t.In(taipei)
}
