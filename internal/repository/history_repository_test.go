package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"pricetracker/internal/db"
	"pricetracker/internal/model"
)

func TestHistorySaveAndList(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	conn, err := db.New(ctx, url)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer conn.Close()

	repo := &HistoryRepository{DB: conn}
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	target := "https://shop.example.com/" + uuid.NewString()
	n, err := repo.SaveBatch(ctx, uuid.NewString(), []model.Record{
		{URL: target, Price: "19.99", Changed: model.ChangedYes, Status: model.StatusOK},
		{URL: target, Price: "18.00", Status: model.StatusFail},
		{URL: "bad", Price: "1", Status: model.StatusValidationError},
	})
	if err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if n != 1 {
		t.Fatalf("saved %d rows, want 1", n)
	}

	list, err := repo.List(ctx, target, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Price != "19.99" || !list[0].Changed {
		t.Fatalf("list = %+v", list)
	}
}
