// Package worker implements the background consumers: the spreadsheet backup
// worker fed by AMQP and the periodic reset sweep.
package worker

import (
	"context"
	"errors"
	"fmt"

	"presupuesto/internal/amqp"
	"presupuesto/internal/core"
	"presupuesto/internal/log"
	"presupuesto/internal/sheets"
	"presupuesto/internal/storage"
)

// SyncWorker mirrors transaction changes into the backup spreadsheet.
type SyncWorker struct {
	store   *storage.SQLiteRepository
	writer  sheets.TransactionWriter
	deleter sheets.TransactionDeleter
	logger  *log.Logger
}

var _ amqp.Handler = (*SyncWorker)(nil)

func NewSyncWorker(store *storage.SQLiteRepository, writer sheets.TransactionWriter, deleter sheets.TransactionDeleter, logger *log.Logger) *SyncWorker {
	return &SyncWorker{
		store:   store,
		writer:  writer,
		deleter: deleter,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleSync fetches the transaction from the database and appends it to the
// spreadsheet. The message only carries ids; the row read here is always the
// latest state. A transaction deleted before the message arrives is treated
// as done, its delete message is already behind it in the queue.
func (w *SyncWorker) HandleSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	t, err := w.store.GetTransaction(ctx, msg.UserID, msg.ID)
	if errors.Is(err, core.ErrTransactionNotFound) {
		w.logger.WarnContext(ctx, "Transaction gone before sync, skipping",
			log.FieldTxID, msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	ref, err := w.writer.Append(ctx, t)
	if err != nil {
		return fmt.Errorf("append to backup: %w", err)
	}
	w.logger.InfoContext(ctx, "Transaction backed up",
		log.FieldTxID, t.ID,
		log.FieldUserID, t.UserID,
		log.FieldSheetsRef, ref)
	return nil
}

// HandleDelete drops the transaction's backup row using the snapshot in the
// message; the database row no longer exists.
func (w *SyncWorker) HandleDelete(ctx context.Context, msg *amqp.TransactionDeleteMessage) error {
	if err := w.deleter.Delete(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete backup row: %w", err)
	}
	w.logger.InfoContext(ctx, "Backup row removed",
		log.FieldTxID, msg.ID,
		log.FieldUserID, msg.UserID)
	return nil
}
