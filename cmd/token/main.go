// Command token prints a signed access token for local testing of the
// viewer API.
package main

import (
	"flag"
	"fmt"
	"time"

	jwtPkg "ImageLabelViewer/pkg/jwt"
	"ImageLabelViewer/pkg/log"

	"github.com/joho/godotenv"
)

func main() {
	id := flag.String("id", "dev-user", "user id claim")
	email := flag.String("email", "dev@example.com", "email claim")
	username := flag.String("username", "dev", "username claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	logger := log.NewLogger()
	_ = godotenv.Load()

	token, expiresAt, err := jwtPkg.Sign(map[string]interface{}{
		"id":       *id,
		"email":    *email,
		"username": *username,
	}, *ttl)
	if err != nil {
		logger.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Println(token)
	logger.Infof("Token expires at %s", time.Unix(expiresAt, 0).Format(time.RFC3339))
}
