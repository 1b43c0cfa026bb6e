// Package middleware provides pipeline middleware for a store: an audit
// logger, panic recovery, metadata tagging and dispatch metrics.
//
// Middleware are applied with Store.ApplyMiddleware or CreateAPI. The last
// applied runs first, so recovery is usually applied last:
//
//	st.ApplyMiddleware(
//	    middleware.Tag("source", "cli"),
//	    middleware.Logger(logger),
//	    metrics.Middleware(),
//	    middleware.Recover(logger),
//	)
package middleware
