// Package worker archives generated statements to durable JSON documents.
package worker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"resto/internal/amqp"
)

// ArchiveWorker writes each statement-ready message to a JSON file, one
// file per scope and period. Re-delivered messages overwrite the previous
// document, so archival is idempotent.
type ArchiveWorker struct {
	dir string
}

func NewArchiveWorker(dir string) (*ArchiveWorker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &ArchiveWorker{dir: dir}, nil
}

// HandleStatementMessage persists a statement document. Returning an error
// tells the consumer to requeue the message.
func (w *ArchiveWorker) HandleStatementMessage(msg *amqp.StatementReadyMessage) error {
	path := w.documentPath(msg)

	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal statement document: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write statement document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize statement document: %w", err)
	}

	slog.Info("Statement archived",
		"scope_id", msg.ScopeID,
		"start", msg.Statement.Start,
		"end", msg.Statement.End,
		"path", path)
	return nil
}

func (w *ArchiveWorker) documentPath(msg *amqp.StatementReadyMessage) string {
	name := fmt.Sprintf("scope-%d_%s_%s.json", msg.ScopeID, msg.Statement.Start, msg.Statement.End)
	return filepath.Join(w.dir, name)
}
