// Command gen-token prints a service JWT for local development and load
// tests. It signs with JWT_SECRET, read the same way the server reads it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/arnold/taskflow-api/internal/config"
	"github.com/arnold/taskflow-api/internal/middleware"
)

func main() {
	var (
		email  = flag.String("email", "", "email claim")
		count  = flag.Int("count", 1, "number of tokens to generate")
		prefix = flag.String("prefix", "perf-user", "prefix for generated user IDs when count > 1")
		output = flag.String("output", "", "file to write generated tokens as a JSON array")
	)
	flag.Parse()
	_ = godotenv.Load()

	if *count < 1 {
		log.Fatal("count must be at least 1")
	}
	args := flag.Args()
	if len(args) > 0 && *count > 1 {
		log.Fatal("explicit user ID cannot be provided when generating multiple tokens")
	}

	auth := middleware.NewAuthenticator(config.Load().JWTSecret, nil)
	userIDs := args
	if len(userIDs) == 0 {
		if *count == 1 {
			userIDs = []string{"dev-user"}
		} else {
			for i := 1; i <= *count; i++ {
				userIDs = append(userIDs, fmt.Sprintf("%s-%d", *prefix, i))
			}
		}
	}

	tokens := make([]string, 0, len(userIDs))
	for _, uid := range userIDs {
		tok, err := auth.GenerateToken(uid, *email)
		if err != nil {
			log.Fatalf("generate token: %v", err)
		}
		tokens = append(tokens, tok)
	}

	if *output != "" {
		data, err := json.MarshalIndent(tokens, "", "  ")
		if err != nil {
			log.Fatalf("encode tokens: %v", err)
		}
		if err := os.WriteFile(*output, data, 0o600); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
		return
	}
	for _, tok := range tokens {
		fmt.Println(tok)
	}
}
