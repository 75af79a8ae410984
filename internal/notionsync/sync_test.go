package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockDatabase is a hand-written Database.
type MockDatabase struct {
	CreatePageFunc  func(ctx context.Context, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePageFunc  func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryFunc       func(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	ArchivePageFunc func(ctx context.Context, pageID string) error

	created []notionapi.Properties
	updated []string
	deleted []string
}

func (m *MockDatabase) CreatePage(ctx context.Context, properties notionapi.Properties) (*notionapi.Page, error) {
	m.created = append(m.created, properties)
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, properties)
	}
	return &notionapi.Page{ID: "new-page"}, nil
}

func (m *MockDatabase) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.updated = append(m.updated, pageID)
	if m.UpdatePageFunc != nil {
		return m.UpdatePageFunc(ctx, pageID, properties)
	}
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockDatabase) Query(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, req)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

func (m *MockDatabase) ArchivePage(ctx context.Context, pageID string) error {
	m.deleted = append(m.deleted, pageID)
	if m.ArchivePageFunc != nil {
		return m.ArchivePageFunc(ctx, pageID)
	}
	return nil
}

func pageFor(pageID, expenseID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			PropExpenseID: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: expenseID}},
			},
		},
	}
}

func sampleExpense(id int64) *models.Expense {
	return &models.Expense{
		ID:          id,
		UserID:      3,
		Description: "Pizza",
		Amount:      20,
		Category:    "Food",
		AddedAt:     time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestExpenseToNotionProperties(t *testing.T) {
	props := ExpenseToNotionProperties(sampleExpense(9))

	title, ok := props[PropDescription].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Pizza", title.Title[0].Text.Content)

	amount, ok := props[PropAmount].(notionapi.NumberProperty)
	require.True(t, ok)
	assert.Equal(t, 20.0, amount.Number)

	category, ok := props[PropCategory].(notionapi.SelectProperty)
	require.True(t, ok)
	assert.Equal(t, "Food", category.Select.Name)

	id, ok := props[PropExpenseID].(notionapi.RichTextProperty)
	require.True(t, ok)
	assert.Equal(t, "9", id.RichText[0].Text.Content)

	date, ok := props[PropDate].(notionapi.DateProperty)
	require.True(t, ok)
	assert.True(t, time.Time(*date.Date.Start).Equal(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)))
}

func TestSyncExpense_CreatesWhenMissing(t *testing.T) {
	var filter *notionapi.DatabaseQueryRequest
	svc := &MockDatabase{
		QueryFunc: func(ctx context.Context, f *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			filter = f
			return &notionapi.DatabaseQueryResponse{}, nil
		},
	}
	s := NewSyncer(svc, zerolog.Nop())

	require.NoError(t, s.SyncExpense(context.Background(), sampleExpense(9)))
	assert.Len(t, svc.created, 1)
	assert.Empty(t, svc.updated)

	pf, ok := filter.Filter.(notionapi.PropertyFilter)
	require.True(t, ok)
	assert.Equal(t, PropExpenseID, pf.Property)
	assert.Equal(t, "9", pf.RichText.Equals)
}

func TestSyncExpense_UpdatesExistingPage(t *testing.T) {
	svc := &MockDatabase{
		QueryFunc: func(ctx context.Context, f *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageFor("page-9", "9")}}, nil
		},
	}
	s := NewSyncer(svc, zerolog.Nop())

	require.NoError(t, s.SyncExpense(context.Background(), sampleExpense(9)))
	assert.Empty(t, svc.created)
	assert.Equal(t, []string{"page-9"}, svc.updated)
}

func TestSyncExpense_Errors(t *testing.T) {
	svc := &MockDatabase{
		QueryFunc: func(ctx context.Context, f *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return nil, errors.New("rate limited")
		},
	}
	s := NewSyncer(svc, zerolog.Nop())
	require.Error(t, s.SyncExpense(context.Background(), sampleExpense(1)))

	require.Error(t, s.HandleJob(context.Background(), &jobs.Job{JobID: "j", Type: jobs.JobTypeSyncExpense}))
}

func TestSyncAll(t *testing.T) {
	calls := 0
	svc := &MockDatabase{
		QueryFunc: func(ctx context.Context, f *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			calls++
			if calls == 1 {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{pageFor("page-1", "1")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			assert.Equal(t, notionapi.Cursor("next"), f.StartCursor)
			return &notionapi.DatabaseQueryResponse{
				Results: []notionapi.Page{pageFor("page-stale", "77"), pageFor("page-orphan", "")},
			}, nil
		},
	}
	s := NewSyncer(svc, zerolog.Nop())

	stats, err := s.SyncAll(context.Background(), []*models.Expense{sampleExpense(1), sampleExpense(2)}, false)
	require.NoError(t, err)

	assert.Equal(t, SyncStats{Created: 1, Updated: 1, Deleted: 2}, stats)
	assert.Equal(t, []string{"page-1"}, svc.updated)
	assert.ElementsMatch(t, []string{"page-stale", "page-orphan"}, svc.deleted)
}

func TestSyncAll_DryRunWritesNothing(t *testing.T) {
	svc := &MockDatabase{
		QueryFunc: func(ctx context.Context, f *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{pageFor("page-stale", "5")}}, nil
		},
	}
	s := NewSyncer(svc, zerolog.Nop())

	stats, err := s.SyncAll(context.Background(), []*models.Expense{sampleExpense(1)}, true)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Created: 1, Deleted: 1}, stats)
	assert.Empty(t, svc.created)
	assert.Empty(t, svc.deleted)
}
