package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/m-mizutani/quakead/pkg/service/mcp"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
)

// Serves a one-event, one-household catalog over stdio.
func main() {
	ctx := context.Background()
	at := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	store := repository.NewMemory()
	if err := store.PutEvents(ctx, []*model.SeismicEvent{
		{EventID: "ev1", Time: at, Latitude: 34.05, Longitude: -118.24, Magnitude: 6.0},
	}); err != nil {
		log.Fatal(err)
	}
	if err := store.PutHouseholds(ctx, []*model.Household{
		{PersonID: "P10000", FirstName: "Jane", LastName: "Doe", Latitude: 34.14, Longitude: -118.24, HouseValue: 600000},
	}); err != nil {
		log.Fatal(err)
	}

	c, err := catalog.New(store, catalog.WithClock(func() time.Time { return at }))
	if err != nil {
		log.Fatal(err)
	}

	if err := mcp.RunStdio(ctx, mcp.NewServer(c)); err != nil {
		log.Printf("Server failed: %v", err)
		os.Exit(1)
	}
}
