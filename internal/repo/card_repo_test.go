package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tbourn/xianyu-agent/internal/domain"
)

func TestPopCardLine_ConsumesHeadInOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := &domain.Card{Name: "keys", Kind: domain.CardKindData, DataContent: "L1\nL2\nL3", Enabled: true}
	if err := CreateCard(ctx, db, c); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	for _, want := range []string{"L1", "L2", "L3"} {
		got, err := PopCardLine(ctx, db, c.ID)
		if err != nil || got != want {
			t.Fatalf("PopCardLine = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := PopCardLine(ctx, db, c.ID); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestPopCardLine_SkipsBlankLines(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := &domain.Card{Name: "keys", Kind: domain.CardKindData, DataContent: "\r\n  \r\nA\r\n\r\nB", Enabled: true}
	if err := CreateCard(ctx, db, c); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}
	got, err := PopCardLine(ctx, db, c.ID)
	if err != nil || got != "A" {
		t.Fatalf("first pop = %q, %v", got, err)
	}
	after, _ := GetCard(ctx, db, c.ID)
	if after.DataContent != "\nB" {
		t.Fatalf("remaining = %q", after.DataContent)
	}
}

func TestPopCardLine_SerializedCallersNeverShareALine(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := &domain.Card{Name: "keys", Kind: domain.CardKindData, DataContent: "a\nb\nc\nd\ne", Enabled: true}
	if err := CreateCard(ctx, db, c); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	var (
		mu   sync.Mutex
		lock sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock.Lock()
			line, err := PopCardLine(ctx, db, c.ID)
			lock.Unlock()
			if err != nil {
				t.Errorf("pop: %v", err)
				return
			}
			mu.Lock()
			seen[line]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 5 {
		t.Fatalf("expected 5 distinct lines, got %v", seen)
	}
}

func TestFindDeliveryRules_RankingAndSpecFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	card := &domain.Card{Name: "c", Kind: domain.CardKindText, TextContent: "x", Enabled: true}
	off := &domain.Card{Name: "off", Kind: domain.CardKindText, TextContent: "x", Enabled: false}
	for _, c := range []*domain.Card{card, off} {
		if err := CreateCard(ctx, db, c); err != nil {
			t.Fatalf("CreateCard: %v", err)
		}
	}
	rules := []*domain.DeliveryRule{
		{Keyword: "VIP", CardID: card.ID, Enabled: true},
		{Keyword: "VIP会员", CardID: card.ID, Enabled: true},
		{Keyword: "VIP会员年卡", CardID: off.ID, Enabled: true},
		{Keyword: "VIP会员月", CardID: card.ID, Enabled: false},
		{Keyword: "VIP", CardID: card.ID, Enabled: true, SpecName: "时长", SpecValue: "30天"},
	}
	for _, r := range rules {
		if err := CreateDeliveryRule(ctx, db, r); err != nil {
			t.Fatalf("CreateDeliveryRule: %v", err)
		}
	}

	plain, err := FindDeliveryRules(ctx, db, RuleQuery{})
	if err != nil {
		t.Fatalf("FindDeliveryRules: %v", err)
	}
	if len(plain) != 2 || plain[0].Keyword != "VIP会员" || plain[1].Keyword != "VIP" {
		t.Fatalf("unexpected plain rules: %+v", plain)
	}
	if plain[0].Card == nil || plain[0].Card.ID != card.ID {
		t.Fatalf("card not preloaded: %+v", plain[0])
	}

	spec, err := FindDeliveryRules(ctx, db, RuleQuery{Spec: true, SpecName: "时长", SpecValue: "30天"})
	if err != nil || len(spec) != 1 || !spec[0].IsMultiSpec() {
		t.Fatalf("spec rules = %+v err=%v", spec, err)
	}

	none, _ := FindDeliveryRules(ctx, db, RuleQuery{Spec: true, SpecName: "时长", SpecValue: "7天"})
	if len(none) != 0 {
		t.Fatalf("expected no rules for unknown spec, got %+v", none)
	}
}

func TestFindDeliveryRules_OwnerScope(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u1, u2 := uint(1), uint(2)
	mine := &domain.Card{Name: "mine", Kind: domain.CardKindText, Enabled: true, OwnerUserID: &u1}
	theirs := &domain.Card{Name: "theirs", Kind: domain.CardKindText, Enabled: true, OwnerUserID: &u2}
	shared := &domain.Card{Name: "shared", Kind: domain.CardKindText, Enabled: true}
	for _, c := range []*domain.Card{mine, theirs, shared} {
		if err := CreateCard(ctx, db, c); err != nil {
			t.Fatalf("CreateCard: %v", err)
		}
		if err := CreateDeliveryRule(ctx, db, &domain.DeliveryRule{Keyword: c.Name, CardID: c.ID, Enabled: true}); err != nil {
			t.Fatalf("CreateDeliveryRule: %v", err)
		}
	}
	got, err := FindDeliveryRules(ctx, db, RuleQuery{Owner: &u1})
	if err != nil {
		t.Fatalf("FindDeliveryRules: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected own + shared rules, got %+v", got)
	}
	for _, r := range got {
		if r.Keyword == "theirs" {
			t.Fatalf("foreign card leaked: %+v", r)
		}
	}
}

func TestIncrementRuleDeliveryCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := &domain.Card{Name: "c", Kind: domain.CardKindText, Enabled: true}
	_ = CreateCard(ctx, db, c)
	r := &domain.DeliveryRule{Keyword: "k", CardID: c.ID, Enabled: true}
	_ = CreateDeliveryRule(ctx, db, r)

	if err := IncrementRuleDeliveryCount(ctx, db, r.ID, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := IncrementRuleDeliveryCount(ctx, db, r.ID, 2); err != nil {
		t.Fatalf("increment: %v", err)
	}
	list, _ := ListDeliveryRules(ctx, db)
	if len(list) != 1 || list[0].DeliveryCount != 3 {
		t.Fatalf("delivery_count = %+v", list)
	}
}
