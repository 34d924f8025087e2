package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/simplefin-sync/internal/logger"
	"github.com/dvloznov/simplefin-sync/internal/simplefin"
)

func main() {
	log := logger.New()

	token := flag.String("token", "", "SimpleFIN setup token (required)")
	flag.Parse()

	if *token == "" {
		log.Fatal().Msg("Error: --token is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	accessURL, err := simplefin.ClaimAccessURL(ctx, nil, *token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to claim setup token")
	}

	// The access URL embeds the durable credentials; the setup token is
	// now spent and cannot be claimed again.
	fmt.Println(accessURL)
	log.Info().Msg("Store the access URL securely, e.g. as SIMPLEFIN_URL in .env")
}
