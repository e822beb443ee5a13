package repo

import (
	"context"
	"testing"

	"github.com/tbourn/go-chat-agent/internal/domain"
)

func TestStore_ProxiesRepositoryFunctions(t *testing.T) {
	s := NewStore(newTestDB(t, &domain.ProcessedMessage{}, &domain.Turn{}, &domain.ProfileFact{}))
	ctx := context.Background()

	if ok, err := s.MarkProcessed(ctx, 1, 2); err != nil || !ok {
		t.Fatalf("MarkProcessed = (%v, %v)", ok, err)
	}
	if seen, err := s.IsProcessed(ctx, 1, 2); err != nil || !seen {
		t.Fatalf("IsProcessed = (%v, %v)", seen, err)
	}
	if err := s.AppendTurn(ctx, 1, 3, domain.RoleUser, "hey", nil); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	turns, err := s.RecentTurns(ctx, 1, 10)
	if err != nil || len(turns) != 1 {
		t.Fatalf("RecentTurns = (%v, %v)", turns, err)
	}
	if err := s.AddProfileFact(ctx, 3, "city", "Oslo", 0.8); err != nil {
		t.Fatalf("AddProfileFact: %v", err)
	}
	facts, err := s.RecentProfileFacts(ctx, 3, 8)
	if err != nil || len(facts) != 1 || facts[0].String() != "city: Oslo (conf=0.80)" {
		t.Fatalf("RecentProfileFacts = (%v, %v)", facts, err)
	}
}

func TestStore_InspectionQueries(t *testing.T) {
	s := NewStore(newTestDB(t, &domain.ProcessedMessage{}, &domain.Turn{}, &domain.ProfileFact{}))
	ctx := context.Background()

	for i, txt := range []string{"a", "b", "c"} {
		if err := s.AppendTurn(ctx, 9, 1, domain.RoleUser, txt, nil); err != nil {
			t.Fatalf("AppendTurn %d: %v", i, err)
		}
	}
	_ = s.AppendTurn(ctx, 10, 1, domain.RoleUser, "other chat", nil)
	_, _ = s.MarkProcessed(ctx, 9, 1)

	items, total, err := s.TurnsPage(ctx, 9, 2, 2)
	if err != nil || total != 3 || len(items) != 1 || items[0].Text != "c" {
		t.Fatalf("TurnsPage = (%v, %d, %v)", items, total, err)
	}

	n, maxTS, err := s.TurnsStats(ctx, 9)
	if err != nil || n != 3 || maxTS == nil {
		t.Fatalf("TurnsStats = (%d, %v, %v)", n, maxTS, err)
	}

	tot, err := s.Totals(ctx)
	if err != nil || tot != (Totals{Processed: 1, Turns: 4, Facts: 0}) {
		t.Fatalf("Totals = (%+v, %v)", tot, err)
	}
}
