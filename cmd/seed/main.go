package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"activation-card-service/internal/config"
	"activation-card-service/internal/domain/model"
	pg "activation-card-service/internal/infra/db/postgres"
	"activation-card-service/internal/infra/logging"
	"activation-card-service/internal/usecase"
)

// Mints a batch of cards per type for local testing and demos.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	count := flag.Int("count", 3, "cards to mint per type")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	cardRepo := pg.NewCardRepo(pool)
	cardUC := usecase.NewCardUseCase(cardRepo, pg.NewTxManager(pool), nil, logger)

	for _, cardType := range model.KnownCardTypes {
		cards, err := cardUC.Create(ctx, usecase.CreateCardParams{
			CardType: cardType,
			Count:    *count,
			Note:     "seeded",
		})
		if err != nil {
			log.Fatalf("mint %s cards: %v", cardType, err)
		}
		for _, c := range cards {
			fmt.Printf("seeded: %s (%s)\n", c.Code, c.CardType)
		}
	}

	fmt.Println("Seeding complete.")
}
