// Package jwt issues and verifies HS256 access tokens identifying the user
// behind billing commands.
//
// It builds on github.com/golang-jwt/jwt/v5. The user ID travels in the sub
// claim; email and name ride along so the billing layer can create provider
// customers without another lookup.
//
//	svc, err := jwt.NewFromString(cfg.SigningKey, jwt.WithIssuer("billingd"))
//	r.With(jwt.Middleware(svc)).Post("/billing/subscription/upgrade", h)
//
//	userID, ok := jwt.UserIDFromContext(r.Context())
package jwt
