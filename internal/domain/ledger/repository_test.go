package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Integration tests. They run against TEST_DATABASE_URL and skip when
// Postgres is not reachable.

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := []string{
		`CREATE TABLE IF NOT EXISTS financial_journals (
			id UUID PRIMARY KEY,
			idempotency_key TEXT NOT NULL UNIQUE,
			source_kind TEXT NOT NULL,
			source_id TEXT NOT NULL,
			flow_type TEXT NOT NULL,
			currency TEXT NOT NULL,
			description TEXT,
			provider TEXT,
			metadata JSONB,
			occurred_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS financial_postings (
			id UUID PRIMARY KEY,
			journal_id UUID NOT NULL REFERENCES financial_journals (id),
			account_code TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount_minor BIGINT NOT NULL,
			currency TEXT NOT NULL,
			counterparty_type TEXT,
			counterparty_id TEXT
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema setup: %v", err)
		}
	}
	return db
}

func settlementInput(key string) RecordInput {
	return RecordInput{
		IdempotencyKey: key,
		SourceKind:     SourceTransaction,
		SourceID:       uuid.NewString(),
		FlowType:       FlowPhotoPurchase,
		Currency:       "USD",
		Description:    "photo purchase settlement",
		Provider:       "stripe",
		OccurredAt:     time.Now().UTC(),
		Postings: []Posting{
			{AccountCode: AccountPlatformCashClearing, Direction: Debit, AmountMinor: 1000, Currency: "USD"},
			{AccountCode: AccountCreatorPayable, Direction: Credit, AmountMinor: 791, Currency: "USD", CounterpartyType: "creator", CounterpartyID: uuid.NewString()},
			{AccountCode: AccountPlatformRevenue, Direction: Credit, AmountMinor: 150, Currency: "USD"},
			{AccountCode: AccountProviderFeeExpense, Direction: Credit, AmountMinor: 59, Currency: "USD"},
		},
	}
}

func TestInsertJournalReplaysOnDuplicateKey(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	key := "ledger:photo_purchase:" + uuid.NewString()
	in := settlementInput(key)
	t.Cleanup(func() {
		db.Exec(`DELETE FROM financial_postings WHERE journal_id IN (SELECT id FROM financial_journals WHERE idempotency_key = $1)`, key)
		db.Exec(`DELETE FROM financial_journals WHERE idempotency_key = $1`, key)
	})

	firstID, replayed, err := repo.InsertJournal(ctx, in)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if replayed {
		t.Fatal("first insert must not report replay")
	}

	secondID, replayed, err := repo.InsertJournal(ctx, in)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if !replayed {
		t.Fatal("duplicate key must report replay")
	}
	if secondID != firstID {
		t.Fatalf("replay returned %s, want %s", secondID, firstID)
	}

	var postings int
	if err := db.Get(&postings, `SELECT COUNT(*) FROM financial_postings WHERE journal_id = $1`, firstID); err != nil {
		t.Fatalf("count postings: %v", err)
	}
	if postings != 4 {
		t.Fatalf("replay wrote extra postings: %d", postings)
	}
}

func TestInsertJournalRejectsUnbalancedPostings(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)

	in := settlementInput("ledger:unbalanced:" + uuid.NewString())
	in.Postings = in.Postings[:2] // debit 1000 vs credit 791

	if _, _, err := repo.InsertJournal(context.Background(), in); err == nil {
		t.Fatal("expected unbalanced journal rejection")
	}
}

func TestListJournalsSinceWindow(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	key := "ledger:window:" + uuid.NewString()
	in := settlementInput(key)
	t.Cleanup(func() {
		db.Exec(`DELETE FROM financial_postings WHERE journal_id IN (SELECT id FROM financial_journals WHERE idempotency_key = $1)`, key)
		db.Exec(`DELETE FROM financial_journals WHERE idempotency_key = $1`, key)
	})

	id, _, err := repo.InsertJournal(ctx, in)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	journals, err := repo.ListJournalsSince(ctx, in.OccurredAt.Add(-time.Minute), 10000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, j := range journals {
		if j.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatal("inserted journal missing from window")
	}

	journals, err = repo.ListJournalsSince(ctx, in.OccurredAt.Add(time.Minute), 10000)
	if err != nil {
		t.Fatalf("list future window: %v", err)
	}
	for _, j := range journals {
		if j.ID == id {
			t.Fatal("journal must not appear before the window start")
		}
	}
}
