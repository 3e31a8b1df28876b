package models

// All lists every persisted model in dependency order. Used for SQLite
// AutoMigrate in development and tests; Postgres schemas come from goose.
func All() []any {
	return []any{
		&User{},
		&Park{},
		&Slot{},
		&Booking{},
		&Log{},
	}
}
