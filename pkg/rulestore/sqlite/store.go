package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"codeberg.org/miketth/pluggedkbd/pkg/pluggedkbd"
	"codeberg.org/miketth/pluggedkbd/pkg/rulestore/sqlite/migrations"
)

type RuleStore struct {
	log     *zap.SugaredLogger
	db      *sql.DB
	querier *Queries
}

func NewRuleStore(filename string, log *zap.SugaredLogger) (*RuleStore, error) {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := migrations.Migrate(db, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &RuleStore{
		log:     log,
		db:      db,
		querier: New(db),
	}, nil
}

func (s *RuleStore) Close() error {
	return s.db.Close()
}

func (s *RuleStore) LoadRules(ctx context.Context) ([]pluggedkbd.Rule, error) {
	rows, err := s.querier.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite select: %w", err)
	}

	rules := make([]pluggedkbd.Rule, 0, len(rows))
	for _, row := range rows {
		rule := pluggedkbd.Rule{
			DeviceID:    row.DeviceID,
			Priority:    int(row.Priority),
			DisplayName: row.DisplayName,
			SourceID:    row.SourceID,
		}
		if err := rule.Validate(); err != nil {
			s.log.Warnw("dropping persisted rule", "position", row.Position, "error", err)
			continue
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// SaveRules replaces the stored rules in one transaction.
func (s *RuleStore) SaveRules(ctx context.Context, rules []pluggedkbd.Rule) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q := s.querier.WithTx(tx)
	if err := q.DeleteRules(ctx); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	for i, rule := range rules {
		if err := q.InsertRule(ctx, RuleRow{
			Position:    int64(i),
			DeviceID:    rule.DeviceID,
			Priority:    int64(rule.Priority),
			DisplayName: rule.DisplayName,
			SourceID:    rule.SourceID,
		}); err != nil {
			return fmt.Errorf("sqlite insert %q: %w", rule.DeviceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DumpSchema writes the schema of the migrated database to w.
func (s *RuleStore) DumpSchema(ctx context.Context, w io.Writer) error {
	statements, err := s.querier.DumpSchema(ctx)
	if err != nil {
		return fmt.Errorf("dump schema: %w", err)
	}

	for _, statement := range statements {
		if _, err := fmt.Fprintf(w, "%s;\n\n", statement); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
	}
	return nil
}
