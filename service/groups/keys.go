package groups

// Group keys are derived from the authenticated identity alone. Delivery
// filtering by conversation happens in the gateway, never at the group level,
// so these stay pure functions with no lookup behind them.

func ChatGroup(userID string) string { return "chat:" + userID }

func NotificationGroup(userID string) string { return "notifications:" + userID }
