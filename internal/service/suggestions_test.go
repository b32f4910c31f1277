package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/affordd/affordd-go/internal/domain"
)

func TestSuggestionList_DefaultLimit(t *testing.T) {
	store := &mockSuggestionStore{}
	svc := newTestSuggestionService(store)

	if _, err := svc.List(context.Background(), "user-1", 0); err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.lastLimit != 10 {
		t.Errorf("expected default limit 10, got %d", store.lastLimit)
	}

	if _, err := svc.List(context.Background(), "user-1", 3); err != nil {
		t.Fatalf("List: %v", err)
	}
	if store.lastLimit != 3 {
		t.Errorf("expected explicit limit 3, got %d", store.lastLimit)
	}
}

func TestSuggestionStats_AggregatesPerScore(t *testing.T) {
	store := &mockSuggestionStore{listing: []domain.PurchaseSuggestion{
		{ID: "a", Score: domain.ScoreGood, Price: 100},
		{ID: "b", Score: domain.ScoreGood, Price: 250},
		{ID: "c", Score: domain.ScoreRisky, Price: 9000},
	}}
	svc := newTestSuggestionService(store)

	stats, err := svc.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if store.lastLimit != 0 {
		t.Errorf("stats must list the full history (limit 0), got %d", store.lastLimit)
	}
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	good := stats.ByScore[domain.ScoreGood]
	if good.Count != 2 || good.TotalPrice != 350 {
		t.Errorf("unexpected Good bucket: %+v", good)
	}
	risky := stats.ByScore[domain.ScoreRisky]
	if risky.Count != 1 || risky.TotalPrice != 9000 {
		t.Errorf("unexpected Risky bucket: %+v", risky)
	}
	if stats.Computed.IsZero() || time.Since(stats.Computed) > time.Minute {
		t.Errorf("unexpected computed timestamp: %v", stats.Computed)
	}
}

func TestSuggestionRecord_StoreErrorPropagates(t *testing.T) {
	store := &mockSuggestionStore{appendErr: errors.New("insert failed")}
	svc := newTestSuggestionService(store)

	_, err := svc.Record(context.Background(), &domain.PurchaseSuggestion{ID: "x", UID: "user-1", Score: domain.ScoreGood})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
