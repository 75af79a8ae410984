package notionsync

import (
	"strconv"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/jomei/notionapi"
)

// Property names of the expenses database.
const (
	PropDescription = "Description"
	PropAmount      = "Amount"
	PropCategory    = "Category"
	PropDate        = "Date"
	PropExpenseID   = "Expense ID"
	PropUserID      = "User ID"
)

// ExpenseToNotionProperties converts a stored expense to Notion properties.
// The Expense ID property is the key used to find the page again.
func ExpenseToNotionProperties(e *models.Expense) notionapi.Properties {
	props := notionapi.Properties{
		PropDescription: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: e.Description,
					},
				},
			},
		},
		PropAmount: notionapi.NumberProperty{
			Number: e.Amount,
		},
		PropExpenseID: richText(expenseKey(e.ID)),
		PropUserID: notionapi.NumberProperty{
			Number: float64(e.UserID),
		},
	}

	if e.Category != "" {
		props[PropCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: e.Category,
			},
		}
	}

	if !e.AddedAt.IsZero() {
		d := notionapi.Date(e.AddedAt.UTC().Truncate(time.Second))
		props[PropDate] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	return props
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{
			{
				Type: notionapi.ObjectTypeText,
				Text: &notionapi.Text{
					Content: s,
				},
			},
		},
	}
}

func expenseKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// extractExpenseID returns the Expense ID property of a page, or "".
func extractExpenseID(page notionapi.Page) string {
	if prop, ok := page.Properties[PropExpenseID]; ok {
		if rt, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(rt.RichText) > 0 {
				if rt.RichText[0].PlainText != "" {
					return rt.RichText[0].PlainText
				}
				if rt.RichText[0].Text != nil {
					return rt.RichText[0].Text.Content
				}
			}
		}
	}
	return ""
}
