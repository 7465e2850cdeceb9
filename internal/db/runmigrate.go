package db

// RunMigrations connects, applies the schema (SQL migrations or the
// AutoMigrate fallback, per the MIGRATIONS env var), and closes the
// connection again. Entry point for the -migrate-only flag.
func RunMigrations() error {
	gdb, err := ConnectAndMigrate()
	if err != nil {
		return err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
