// Package environment propagates the application environment (development,
// staging, production) through context.Context, HTTP requests and logs.
//
// Environment-gated operations, such as resetting usage counters, consult the
// environment the service was started with:
//
//	env := environment.Parse(os.Getenv("APP_ENV"))
//	if !env.IsDevelopment() {
//	    return ErrResetNotAllowed
//	}
//
// The Middleware attaches the environment to every request so handlers can
// read it back with FromContext.
package environment
