// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the drivechat service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization
// header and stores it in the Gin context for downstream handlers. It
// does NOT validate the token: validation belongs to the identity client
// inside the chat pipeline, where a 401 can still be repaired by a
// credential refresh. The middleware only rejects requests that carry no
// credential at all, since those can never succeed.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// bearerTokenKey is the context key for the extracted bearer token.
// Using a namespaced key prevents collisions with other context values.
const bearerTokenKey = "aleutian_bearer_token"

// GetBearerToken retrieves the bearer token stored by RequireBearer.
// Returns empty string when the middleware did not run.
func GetBearerToken(c *gin.Context) string {
	if v, exists := c.Get(bearerTokenKey); exists {
		if token, ok := v.(string); ok {
			return token
		}
	}
	return ""
}

// RequireBearer creates a Gin middleware that extracts the bearer token.
//
// # Description
//
// Parses the Authorization header expecting "Bearer <token>" (scheme
// case-insensitive per RFC 7235). Requests without a token are rejected
// with 401 before reaching the handler; everything else continues with
// the token available via GetBearerToken.
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer credential",
			})
			return
		}
		c.Set(bearerTokenKey, token)
		c.Next()
	}
}

// extractBearerToken extracts the token from the Authorization header.
// Returns empty string if the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
