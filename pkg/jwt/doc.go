// Package jwt verifies HS256 access tokens issued by the auth service and
// exposes the caller's identity to HTTP handlers.
//
// Tokens carry the user id in "sub" and a "permissions" list. The middleware
// rejects requests without a valid bearer token with a JSON 401; handlers read
// the caller with UserID and Permissions.
//
//	svc, err := jwt.New(cfg.JWTSecret, jwt.WithLeeway(30*time.Second))
//	if err != nil {
//		return err
//	}
//	r.With(jwt.Middleware(svc)).Get("/customer/subscription", handler)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		userID, _ := jwt.UserID(r.Context())
//		...
//	}
package jwt
