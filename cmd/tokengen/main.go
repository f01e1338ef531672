// Package main mints development access tokens for the companion credits API.
// Tokens are signed with the dev key and will NOT validate in production.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "companion/internal/jwt_token"
	id "companion/pkg/domain"
)

const (
	// Matches config.FromEnv when JWT_SIGNING_KEY is not set.
	devSigningKey = "dev-secret-key-change-in-production"

	defaultIssuerBaseURL = "http://localhost:8080"
	defaultAudience      = "companion"
	defaultTokenTTL      = 15 * time.Minute
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)

	accessUserID := accessCmd.String("user-id", "", "User ID (UUID). Generated if empty.")
	accessTTL := accessCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	accessKey := accessCmd.String("signing-key", envOr("JWT_SIGNING_KEY", devSigningKey), "HS256 signing key")
	accessIssuer := accessCmd.String("issuer", envOr("JWT_ISSUER_BASE_URL", defaultIssuerBaseURL), "Issuer base URL")
	accessAudience := accessCmd.String("audience", envOr("JWT_AUDIENCE", defaultAudience), "Token audience")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	adminToken := adminCmd.String("token", os.Getenv("ADMIN_API_TOKEN"), "Admin token (defaults to ADMIN_API_TOKEN)")
	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "access":
		_ = accessCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		generateAccessToken(*accessUserID, *accessKey, *accessIssuer, *accessAudience, *accessTTL, *accessJSON)
	case "admin":
		_ = adminCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		showAdminToken(*adminToken, *adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate development credentials for the companion credits API

WARNING: Access tokens use the dev signing key unless -signing-key is given.
         Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  access    Generate an access token (JWT) for a user
  admin     Show the X-Admin-Token header for /admin routes

Examples:
  # Access token for a fresh user
  tokengen access

  # Access token for a known user, valid for an hour
  tokengen access -user-id "550e8400-e29b-41d4-a716-446655440000" -ttl 1h

  # Output as JSON
  tokengen access -json

Use "tokengen <command> -h" for more information about a command.`)
}

func generateAccessToken(userID, signingKey, issuer, audience string, ttl time.Duration, jsonOutput bool) {
	uid := parseOrGenerateUserID(userID)
	svc := jwttoken.NewJWTService(signingKey, issuer, audience, ttl)

	token, jti, err := svc.GenerateAccessToken(context.Background(), uid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	keyType := "custom"
	if signingKey == devSigningKey {
		keyType = "dev"
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "access_token",
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"user_id": uid.String(),
				"aud":     audience,
				"jti":     jti,
			},
			Usage: map[string]string{
				"header":      "Authorization: Bearer <token>",
				"signing_key": keyType,
			},
		})
		return
	}

	fmt.Println("Access Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Signing Key: %s\n", keyType)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Printf("User ID:     %s\n", uid)
	fmt.Printf("Audience:    %s\n", audience)
	fmt.Printf("JTI:         %s\n", jti)
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/me/credits")
}

func showAdminToken(token string, jsonOutput bool) {
	if token == "" {
		fmt.Fprintln(os.Stderr, "No admin token: set ADMIN_API_TOKEN or pass -token. The server rejects /admin routes without one.")
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token: token,
			Type:  "admin_token",
			Usage: map[string]string{
				"header": "X-Admin-Token: " + token,
			},
		})
		return
	}

	fmt.Println("Admin API Token")
	fmt.Println("===============")
	fmt.Printf("Token: %s\n", token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"X-Admin-Token: " + token + "\" http://localhost:8080/admin/credits/<user_id>")
}

func parseOrGenerateUserID(input string) id.UserID {
	if input == "" {
		return id.UserID(uuid.New())
	}
	parsed, err := id.ParseUserID(input)
	if err != nil || parsed.IsNil() {
		fmt.Fprintf(os.Stderr, "Invalid user-id UUID: %s\n", input)
		os.Exit(1)
	}
	return parsed
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
