package models

import "strings"

type SubscriptionTier string

const (
	TierFree      SubscriptionTier = "free"
	TierStandard  SubscriptionTier = "standard"
	TierPro       SubscriptionTier = "pro"
	TierUnlimited SubscriptionTier = "unlimited"
)

// Unlimited marks a cap that does not apply.
const Unlimited = -1

type Plan struct {
	ID               SubscriptionTier `json:"id"`
	Name             string           `json:"name"`
	Price            int              `json:"price"`
	MaxRegions       int              `json:"maxRegions"`
	DailyNotifyLimit int              `json:"dailyNotifyLimit"`
	Features         []string         `json:"features"`
	Popular          bool             `json:"popular,omitempty"`
}

var plans = []Plan{
	{
		ID:               TierFree,
		Name:             "免費體驗",
		Price:            0,
		MaxRegions:       1,
		DailyNotifyLimit: 3,
		Features:         []string{"1 個監控區域", "每日 3 則通知", "每 5 分鐘掃描", "LINE 即時通知"},
	},
	{
		ID:               TierStandard,
		Name:             "標準版",
		Price:            149,
		MaxRegions:       2,
		DailyNotifyLimit: 10,
		Features:         []string{"2 個監控區域", "每日 10 則通知", "即時通知", "優先支援"},
	},
	{
		ID:               TierPro,
		Name:             "專業版",
		Price:            299,
		MaxRegions:       5,
		DailyNotifyLimit: 30,
		Features:         []string{"5 個監控區域", "每日 30 則通知", "歷史記錄查詢", "優先客服"},
		Popular:          true,
	},
	{
		ID:               TierUnlimited,
		Name:             "無限版",
		Price:            599,
		MaxRegions:       Unlimited,
		DailyNotifyLimit: Unlimited,
		Features:         []string{"全台監控", "每日無上限通知", "API 存取", "專屬客服", "多帳號管理"},
	},
}

// Plans returns the plan catalogue ordered by price.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

func PlanFor(tier SubscriptionTier) (Plan, bool) {
	for _, p := range plans {
		if p.ID == tier {
			return p, true
		}
	}
	return Plan{}, false
}

// PurchasablePlan reports the plan for a paid tier id. The free tier cannot
// be bought.
func PurchasablePlan(id string) (Plan, bool) {
	p, ok := PlanFor(SubscriptionTier(id))
	if !ok || p.Price <= 0 {
		return Plan{}, false
	}
	return p, true
}

// PlanByPrice resolves a paid plan from a settled amount.
func PlanByPrice(amount int) (Plan, bool) {
	for _, p := range plans {
		if p.Price > 0 && p.Price == amount {
			return p, true
		}
	}
	return Plan{}, false
}

func ParseTier(s string) (SubscriptionTier, bool) {
	t := SubscriptionTier(strings.ToLower(strings.TrimSpace(s)))
	_, ok := PlanFor(t)
	return t, ok
}
