// Command devtoken prints a bearer token for local testing.  Production
// tokens come from the marketplace's identity provider; this one is signed
// with the same JWT_SECRET so the server accepts it.
//
//	go run ./cmd/devtoken -sub 3f0c... -role dealer
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

func main() {
	_ = godotenv.Load()

	sub := flag.String("sub", "", "user id (default: random UUID)")
	role := flag.String("role", "user", "role claim: user, dealer or admin")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "signing secret (default: $JWT_SECRET)")
	flag.Parse()

	if *sub == "" {
		*sub = uuid.NewString()
	}
	tok, err := utils.NewAccessToken(*secret, *sub, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
