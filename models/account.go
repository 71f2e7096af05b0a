package models

import "time"

// Account is created on first authentication. Tier and caps change through
// payment confirmation or admin action, the LINE binding through the webhook.
type Account struct {
	ID               string           `json:"uid"`
	Email            string           `json:"email"`
	DisplayName      string           `json:"displayName"`
	Tier             SubscriptionTier `json:"subscription_status"`
	MaxRegions       int              `json:"maxRegions"`
	DailyNotifyLimit int              `json:"dailyNotifyLimit"`
	LineUserID       *string          `json:"lineUserId,omitempty"`
	LineLinkedAt     *time.Time       `json:"lineLinkedAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// NewAccount builds the free-tier defaults for a first sign-in.
func NewAccount(id, email, displayName string) Account {
	free, _ := PlanFor(TierFree)
	return Account{
		ID:               id,
		Email:            email,
		DisplayName:      displayName,
		Tier:             TierFree,
		MaxRegions:       free.MaxRegions,
		DailyNotifyLimit: free.DailyNotifyLimit,
	}
}

func (a Account) IsLineLinked() bool {
	return a.LineUserID != nil && *a.LineUserID != ""
}

// Payment is one settled gateway order applied to an account.
type Payment struct {
	MerchantTradeNo string           `json:"merchant_trade_no"`
	TradeNo         string           `json:"trade_no"`
	AccountID       string           `json:"account_id"`
	Tier            SubscriptionTier `json:"tier"`
	Amount          int              `json:"amount"`
	PaidAt          time.Time        `json:"paid_at"`
}
