package models

import "time"

// Credential 持久化的认证凭据
type Credential struct {
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ExpiredAt 判断凭据在 now 时刻（考虑提前量 margin）是否视为过期
func (c *Credential) ExpiredAt(now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(c.ExpiresAt)
}

// OrderSnapshot 单个订单的当前快照（扁平化后的字段路径 -> 标量值）
type OrderSnapshot struct {
	OrderRef   string         `json:"order_ref" db:"order_ref"`
	Fields     map[string]any `json:"fields" db:"fields"`
	CapturedAt time.Time      `json:"captured_at" db:"captured_at"`
}

// ChangeRecord 两次快照之间的单个字段级差异
// OldValue / NewValue 为 nil 表示该侧字段不存在（新增或删除）
type ChangeRecord struct {
	FieldPath  string    `json:"field_path"`
	OldValue   *string   `json:"old_value"`
	NewValue   *string   `json:"new_value"`
	DetectedAt time.Time `json:"detected_at"`
}

// HistoryEntry 一次拉取周期产生的变更组（至少包含一条变更）
type HistoryEntry struct {
	ID         int64          `json:"id" db:"id"`
	OccurredAt time.Time      `json:"occurred_at" db:"occurred_at"`
	Changes    []ChangeRecord `json:"changes" db:"changes"`
}

// DecodedOption 解析后的选配代码
type DecodedOption struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Known       bool   `json:"known"`
}

// OrderSummary 面向展示层的订单摘要（只读）
type OrderSummary struct {
	OrderRef            string          `json:"order_ref,omitempty"`
	Status              string          `json:"status"`
	Model               string          `json:"model"`
	VIN                 string          `json:"vin,omitempty"`
	Options             []DecodedOption `json:"options,omitempty"`
	ReservationDate     string          `json:"reservation_date,omitempty"`
	OrderBookedDate     string          `json:"order_booked_date,omitempty"`
	ExpectedRegDate     string          `json:"expected_reg_date,omitempty"`
	EtaToDeliveryCenter string          `json:"eta_to_delivery_center,omitempty"`
	DeliveryWindow      string          `json:"delivery_window,omitempty"`
	DeliveryAppointment string          `json:"delivery_appointment,omitempty"`
	DeliveryCenter      string          `json:"delivery_center,omitempty"`
	RoutingLocation     string          `json:"routing_location,omitempty"`
	LifecycleState      string          `json:"lifecycle_state,omitempty"`
	CapturedAt          time.Time       `json:"captured_at"`
}
