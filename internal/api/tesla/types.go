package tesla

// TokenResponse 令牌端点响应
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// DetailedOrder 订单 + 详情任务数据，与持久化快照的原始文档形状一致
type DetailedOrder struct {
	Order   map[string]any `json:"order"`
	Details map[string]any `json:"details"`
}

// Document 合并为一个嵌套文档，供扁平化和落库使用
func (d *DetailedOrder) Document() map[string]any {
	return map[string]any{
		"order":   d.Order,
		"details": d.Details,
	}
}
