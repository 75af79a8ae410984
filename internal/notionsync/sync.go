// Package notionsync mirrors stored expenses into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
)

// SyncStats summarises a full sync.
type SyncStats struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// Syncer writes expenses to one Notion database.
type Syncer struct {
	db  Database
	log zerolog.Logger
}

// NewSyncer creates a Syncer writing to db.
func NewSyncer(db Database, log zerolog.Logger) *Syncer {
	return &Syncer{
		db:  db,
		log: log.With().Str("component", "notionsync").Logger(),
	}
}

// SyncExpense creates the page for e, or updates it when a page with the
// same Expense ID already exists, so retries do not duplicate pages.
func (s *Syncer) SyncExpense(ctx context.Context, e *models.Expense) error {
	pageID, err := s.findPage(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("SyncExpense: %w", err)
	}

	props := ExpenseToNotionProperties(e)
	if pageID != "" {
		if _, err := s.db.UpdatePage(ctx, pageID, props); err != nil {
			return fmt.Errorf("SyncExpense: %w", err)
		}
		s.log.Debug().Int64("expense_id", e.ID).Str("page_id", pageID).Msg("Updated Notion page")
		return nil
	}

	page, err := s.db.CreatePage(ctx, props)
	if err != nil {
		return fmt.Errorf("SyncExpense: %w", err)
	}
	s.log.Debug().Int64("expense_id", e.ID).Str("page_id", string(page.ID)).Msg("Created Notion page")
	return nil
}

// HandleJob is the jobs.JobHandler for jobs.JobTypeSyncExpense.
func (s *Syncer) HandleJob(ctx context.Context, job *jobs.Job) error {
	if job.Expense == nil {
		return fmt.Errorf("HandleJob: job %s has no expense", job.JobID)
	}
	return s.SyncExpense(ctx, job.Expense)
}

// SyncAll makes the database mirror expenses: missing pages are created,
// existing ones updated and pages of unknown expenses archived. Individual
// page failures are logged and counted. With dryRun nothing is written.
func (s *Syncer) SyncAll(ctx context.Context, expenses []*models.Expense, dryRun bool) (SyncStats, error) {
	var stats SyncStats

	pages, err := queryAllPages(ctx, s.db)
	if err != nil {
		return stats, fmt.Errorf("SyncAll: %w", err)
	}

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		if id := extractExpenseID(page); id != "" {
			existing[id] = string(page.ID)
		}
	}

	valid := make(map[string]bool, len(expenses))
	for _, e := range expenses {
		valid[expenseKey(e.ID)] = true
	}

	for _, page := range pages {
		id := extractExpenseID(page)
		if id != "" && valid[id] {
			continue
		}
		if dryRun {
			s.log.Info().Str("expense_id", id).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
			stats.Deleted++
			continue
		}
		if err := s.db.ArchivePage(ctx, string(page.ID)); err != nil {
			s.log.Warn().Err(err).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		stats.Deleted++
	}

	for _, e := range expenses {
		pageID, found := existing[expenseKey(e.ID)]
		props := ExpenseToNotionProperties(e)

		switch {
		case dryRun && found:
			stats.Updated++
		case dryRun:
			stats.Created++
		case found:
			if _, err := s.db.UpdatePage(ctx, pageID, props); err != nil {
				s.log.Warn().Err(err).Int64("expense_id", e.ID).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			stats.Updated++
		default:
			if _, err := s.db.CreatePage(ctx, props); err != nil {
				s.log.Warn().Err(err).Int64("expense_id", e.ID).Msg("Failed to create Notion page")
				stats.Failed++
				continue
			}
			stats.Created++
		}
	}

	s.log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("deleted", stats.Deleted).
		Int("failed", stats.Failed).
		Int("total", len(expenses)).
		Bool("dry_run", dryRun).
		Msg("Expense sync completed")

	return stats, nil
}

func (s *Syncer) findPage(ctx context.Context, expenseID int64) (string, error) {
	resp, err := s.db.Query(ctx, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropExpenseID,
			RichText: &notionapi.TextFilterCondition{
				Equals: expenseKey(expenseID),
			},
		},
		PageSize: 1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return string(resp.Results[0].ID), nil
}

// queryAllPages follows the result cursor until every page was read.
func queryAllPages(ctx context.Context, db Database) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := db.Query(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
