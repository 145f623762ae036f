// Package handlers contains the health checks and middleware shared by the
// HTTP server.
//
// # Health Checks
//
// Named checks are registered on a CompositeHealthChecker and executed in
// parallel:
//
//	checker := handlers.NewCompositeHealthChecker(version, 3*time.Second)
//	checker.AddCheck("postgres", handlers.NewDatabaseCheck(conn))
//	checker.AddCheck("schema", handlers.NewSchemaCheck(postgres.NewMigrator(conn)))
//	checker.AddCheck("current_term", handlers.NewCurrentTermCheck(terms, today))
//	checker.AddCheck("redis", handlers.NewCacheCheck(cache))
//	checker.AddCheck("outbox_breaker", handlers.NewBreakerCheck(deliverer.Breaker()))
//
// A check that wraps ErrDegraded is reported in the status but leaves the
// service healthy. An open outbox breaker, a saturated pool and a missing or
// ended term are reported that way; pending migrations are not.
//
// # Middleware
//
// APIKeyAuth guards the /v1 operator endpoints. Keys are read from the
// configured header or from an "Authorization: Bearer" header.
package handlers
