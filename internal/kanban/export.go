package kanban

import "github.com/arnold/taskflow-api/internal/models"

// Export is the portable JSON form of a board.
type Export struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	CreatedAt   string         `json:"createdAt"`
	Columns     []ExportColumn `json:"columns"`
}

type ExportColumn struct {
	Title string       `json:"title"`
	Cards []ExportCard `json:"cards"`
}

type ExportCard struct {
	Content     string `json:"content"`
	Description string `json:"description,omitempty"`
	AssignedTo  string `json:"assignedTo,omitempty"`
	Comments    int    `json:"comments"`
}

// ExportBoard renders columns in columnOrder order and cards in cardIds order.
func ExportBoard(b *models.Board) Export {
	out := Export{
		Title:       b.Title,
		Description: b.Description,
		CreatedAt:   b.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		Columns:     make([]ExportColumn, 0, len(b.Data.ColumnOrder)),
	}
	for _, colID := range b.Data.ColumnOrder {
		col := b.Data.Columns[colID]
		ec := ExportColumn{Title: col.Title, Cards: make([]ExportCard, 0, len(col.CardIDs))}
		for _, cardID := range col.CardIDs {
			card := b.Data.Cards[cardID]
			ec.Cards = append(ec.Cards, ExportCard{
				Content:     card.Content,
				Description: card.Description,
				AssignedTo:  card.AssignedToEmail,
				Comments:    len(card.Comments),
			})
		}
		out.Columns = append(out.Columns, ec)
	}
	return out
}

// ExportFilename mirrors the download name clients use, e.g. "My_board_export.json".
func ExportFilename(title string) string {
	r := []rune(title)
	for i, c := range r {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			r[i] = '_'
		}
	}
	return string(r) + "_export.json"
}
