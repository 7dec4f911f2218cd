package models

// Tables lists every model managed by AutoMigrate, parents first.
func Tables() []any {
	return []any{
		&User{},
		&UserBadge{},
		&Program{},
		&Report{},
		&Notification{},
	}
}
