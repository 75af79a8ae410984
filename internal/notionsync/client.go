package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
)

const callTimeout = 30 * time.Second

// Database is the expenses database as the syncer sees it.
type Database interface {
	CreatePage(ctx context.Context, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	Query(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	// ArchivePage moves a page to the trash. Notion has no hard delete.
	ArchivePage(ctx context.Context, pageID string) error
}

// NotionDatabase is a Database backed by the Notion API. Every call is
// bounded by callTimeout.
type NotionDatabase struct {
	client *notionapi.Client
	id     notionapi.DatabaseID
}

// NewNotionDatabase binds an integration token to one database.
func NewNotionDatabase(token, databaseID string) *NotionDatabase {
	return &NotionDatabase{
		client: notionapi.NewClient(notionapi.Token(token)),
		id:     notionapi.DatabaseID(databaseID),
	}
}

func (d *NotionDatabase) CreatePage(ctx context.Context, properties notionapi.Properties) (*notionapi.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	page, err := d.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: d.id,
		},
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("create page in %s: %w", d.id, err)
	}
	return page, nil
}

func (d *NotionDatabase) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	page, err := d.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return nil, fmt.Errorf("update page %s: %w", pageID, err)
	}
	return page, nil
}

func (d *NotionDatabase) Query(ctx context.Context, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := d.client.Database.Query(ctx, d.id, req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", d.id, err)
	}
	return resp, nil
}

func (d *NotionDatabase) ArchivePage(ctx context.Context, pageID string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := d.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived: true,
	})
	if err != nil {
		return fmt.Errorf("archive page %s: %w", pageID, err)
	}
	return nil
}

var _ Database = (*NotionDatabase)(nil)
