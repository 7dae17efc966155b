package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const snippetRadius = 32

// SearchMessages finds messages whose content contains query
// (case-insensitive), newest first. An empty waID searches every conversation.
func (db *DB) SearchMessages(ctx context.Context, query, waID string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrValidation)
	}
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + messageColumns + ` FROM messages WHERE content LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if waID != "" {
		q += " AND wa_id = ?"
		args = append(args, waID)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []SearchResult{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Message: *m, Snippet: snippet(m.Content, query)})
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet marks the first match with << >> and trims the text around it.
func snippet(content, query string) string {
	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	end := idx + len(query)
	if idx < 0 || end > len(content) || !utf8.RuneStart(content[idx]) {
		return content
	}
	start := max(0, idx-snippetRadius)
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	stop := min(len(content), end+snippetRadius)
	for stop < len(content) && !utf8.RuneStart(content[stop]) {
		stop++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(content[start:idx])
	b.WriteString("<<")
	b.WriteString(content[idx:end])
	b.WriteString(">>")
	b.WriteString(content[end:stop])
	if stop < len(content) {
		b.WriteString("...")
	}
	return b.String()
}
