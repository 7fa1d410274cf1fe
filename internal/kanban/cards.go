package kanban

import (
	"slices"
	"strings"
	"time"

	"github.com/arnold/taskflow-api/internal/id"
	"github.com/arnold/taskflow-api/internal/models"
)

// AddCard creates a card and appends it to the column.
func AddCard(data models.BoardData, columnID, content, description string) (models.BoardData, models.Card, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return data, models.Card{}, ErrEmptyText
	}
	if _, ok := data.Columns[columnID]; !ok {
		return data, models.Card{}, ErrColumnNotFound
	}
	cardID, err := id.Generate("card")
	if err != nil {
		return data, models.Card{}, err
	}
	ts := now()
	card := models.Card{
		ID:          cardID,
		Content:     content,
		Description: strings.TrimSpace(description),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}

	out := data.Clone()
	out.Cards[cardID] = card
	col := out.Columns[columnID]
	col.CardIDs = append(col.CardIDs, cardID)
	out.Columns[columnID] = col
	return out, card, nil
}

// DeleteCard removes the card from every column listing it and from Cards.
func DeleteCard(data models.BoardData, cardID string) (models.BoardData, error) {
	if _, ok := data.Cards[cardID]; !ok {
		return data, ErrCardNotFound
	}
	out := data.Clone()
	for colID, col := range out.Columns {
		col.CardIDs = slices.DeleteFunc(col.CardIDs, func(id string) bool { return id == cardID })
		out.Columns[colID] = col
	}
	delete(out.Cards, cardID)
	return out, nil
}

// editCard clones data, hands the card to fn and stores the result with a
// fresh UpdatedAt. fn returning ErrNoChange aborts without a copy.
func editCard(data models.BoardData, cardID string, fn func(*models.Card) error) (models.BoardData, error) {
	card, ok := data.Cards[cardID]
	if !ok {
		return data, ErrCardNotFound
	}
	card = card.Clone()
	if err := fn(&card); err != nil {
		return data, err
	}
	card.UpdatedAt = now()
	out := data.Clone()
	out.Cards[cardID] = card
	return out, nil
}

// UpdateCard changes the title and/or description. Nil leaves a field alone.
func UpdateCard(data models.BoardData, cardID string, content, description *string) (models.BoardData, error) {
	return editCard(data, cardID, func(c *models.Card) error {
		changed := false
		if content != nil {
			v := strings.TrimSpace(*content)
			if v == "" {
				return ErrEmptyText
			}
			if v != c.Content {
				c.Content = v
				changed = true
			}
		}
		if description != nil {
			v := strings.TrimSpace(*description)
			if v != c.Description {
				c.Description = v
				changed = true
			}
		}
		if !changed {
			return ErrNoChange
		}
		return nil
	})
}

// ToggleCompleted flips the completion flag and stamps or clears CompletedAt.
func ToggleCompleted(data models.BoardData, cardID string) (models.BoardData, bool, error) {
	var completed bool
	out, err := editCard(data, cardID, func(c *models.Card) error {
		c.Completed = !c.Completed
		completed = c.Completed
		if c.Completed {
			ts := now()
			c.CompletedAt = &ts
		} else {
			c.CompletedAt = nil
		}
		return nil
	})
	return out, completed, err
}

// Assign sets the assignee. An empty userID unassigns the card.
func Assign(data models.BoardData, cardID, userID, email string) (models.BoardData, error) {
	return editCard(data, cardID, func(c *models.Card) error {
		if c.AssignedTo == userID {
			return ErrNoChange
		}
		c.AssignedTo = userID
		c.AssignedToEmail = email
		if userID == "" {
			c.AssignedToEmail = ""
		}
		return nil
	})
}

// SetDueDate sets or, with nil, removes the due date.
func SetDueDate(data models.BoardData, cardID string, due *time.Time) (models.BoardData, error) {
	return editCard(data, cardID, func(c *models.Card) error {
		if due == nil {
			if c.DueDate == nil {
				return ErrNoChange
			}
			c.DueDate = nil
			return nil
		}
		d := due.UTC().Truncate(time.Millisecond)
		if c.DueDate != nil && c.DueDate.Equal(d) {
			return ErrNoChange
		}
		c.DueDate = &d
		return nil
	})
}

// SetPriority sets the priority; the empty priority clears it.
func SetPriority(data models.BoardData, cardID string, p models.Priority) (models.BoardData, error) {
	if !p.Valid() {
		return data, ErrInvalidPriority
	}
	return editCard(data, cardID, func(c *models.Card) error {
		if c.Priority == p {
			return ErrNoChange
		}
		c.Priority = p
		return nil
	})
}

// ToggleLabel adds labelID to the card or removes it if already present.
// It reports whether the label was added.
func ToggleLabel(data models.BoardData, cardID, labelID string) (models.BoardData, bool, error) {
	var added bool
	out, err := editCard(data, cardID, func(c *models.Card) error {
		if c.HasLabel(labelID) {
			c.Labels = slices.DeleteFunc(c.Labels, func(l string) bool { return l == labelID })
			if len(c.Labels) == 0 {
				c.Labels = nil
			}
			return nil
		}
		c.Labels = append(c.Labels, labelID)
		added = true
		return nil
	})
	return out, added, err
}

// AddComment appends a comment authored by authorID.
func AddComment(data models.BoardData, cardID, authorID, authorEmail, text string) (models.BoardData, models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return data, models.Comment{}, ErrEmptyText
	}
	commentID, err := id.Generate("comment")
	if err != nil {
		return data, models.Comment{}, err
	}
	comment := models.Comment{
		ID:          commentID,
		Text:        text,
		AuthorID:    authorID,
		AuthorEmail: authorEmail,
		CreatedAt:   now(),
	}
	out, err := editCard(data, cardID, func(c *models.Card) error {
		c.Comments = append(c.Comments, comment)
		return nil
	})
	return out, comment, err
}

// DeleteComment removes a comment. Only its author may do so.
func DeleteComment(data models.BoardData, cardID, commentID, actorID string) (models.BoardData, models.Comment, error) {
	var removed models.Comment
	out, err := editCard(data, cardID, func(c *models.Card) error {
		i := slices.IndexFunc(c.Comments, func(cm models.Comment) bool { return cm.ID == commentID })
		if i < 0 {
			return ErrCommentNotFound
		}
		if c.Comments[i].AuthorID != actorID {
			return ErrNotCommentAuthor
		}
		removed = c.Comments[i]
		c.Comments = slices.Delete(c.Comments, i, i+1)
		if len(c.Comments) == 0 {
			c.Comments = nil
		}
		return nil
	})
	return out, removed, err
}

// AddChecklist appends an empty checklist.
func AddChecklist(data models.BoardData, cardID, title string) (models.BoardData, models.Checklist, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New checklist"
	}
	clID, err := id.Generate("checklist")
	if err != nil {
		return data, models.Checklist{}, err
	}
	cl := models.Checklist{ID: clID, Title: title, Items: []models.ChecklistItem{}, CreatedAt: now()}
	out, err := editCard(data, cardID, func(c *models.Card) error {
		c.Checklists = append(c.Checklists, cl)
		return nil
	})
	return out, cl, err
}

func DeleteChecklist(data models.BoardData, cardID, checklistID string) (models.BoardData, error) {
	return editCard(data, cardID, func(c *models.Card) error {
		i := checklistIndex(c, checklistID)
		if i < 0 {
			return ErrChecklistNotFound
		}
		c.Checklists = slices.Delete(c.Checklists, i, i+1)
		if len(c.Checklists) == 0 {
			c.Checklists = nil
		}
		return nil
	})
}

func AddChecklistItem(data models.BoardData, cardID, checklistID, text string) (models.BoardData, models.ChecklistItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return data, models.ChecklistItem{}, ErrEmptyText
	}
	itemID, err := id.Generate("item")
	if err != nil {
		return data, models.ChecklistItem{}, err
	}
	item := models.ChecklistItem{ID: itemID, Text: text, CreatedAt: now()}
	out, err := editCard(data, cardID, func(c *models.Card) error {
		i := checklistIndex(c, checklistID)
		if i < 0 {
			return ErrChecklistNotFound
		}
		c.Checklists[i].Items = append(c.Checklists[i].Items, item)
		return nil
	})
	return out, item, err
}

// ToggleChecklistItem flips an item and reports its new state.
func ToggleChecklistItem(data models.BoardData, cardID, checklistID, itemID string) (models.BoardData, models.ChecklistItem, error) {
	var toggled models.ChecklistItem
	out, err := editCard(data, cardID, func(c *models.Card) error {
		i := checklistIndex(c, checklistID)
		if i < 0 {
			return ErrChecklistNotFound
		}
		items := c.Checklists[i].Items
		j := slices.IndexFunc(items, func(it models.ChecklistItem) bool { return it.ID == itemID })
		if j < 0 {
			return ErrChecklistItemNotFound
		}
		items[j].Completed = !items[j].Completed
		toggled = items[j]
		return nil
	})
	return out, toggled, err
}

func DeleteChecklistItem(data models.BoardData, cardID, checklistID, itemID string) (models.BoardData, error) {
	return editCard(data, cardID, func(c *models.Card) error {
		i := checklistIndex(c, checklistID)
		if i < 0 {
			return ErrChecklistNotFound
		}
		items := c.Checklists[i].Items
		j := slices.IndexFunc(items, func(it models.ChecklistItem) bool { return it.ID == itemID })
		if j < 0 {
			return ErrChecklistItemNotFound
		}
		c.Checklists[i].Items = slices.Delete(items, j, j+1)
		return nil
	})
}

func checklistIndex(c *models.Card, checklistID string) int {
	return slices.IndexFunc(c.Checklists, func(cl models.Checklist) bool { return cl.ID == checklistID })
}

// Excerpt shortens card text for activity descriptions.
func Excerpt(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
