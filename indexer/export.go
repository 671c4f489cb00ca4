package indexer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"gorm.io/gorm"
)

const exportBatchSize = 500

type parquetRow struct {
	ID        string `parquet:"name=id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Height    int64  `parquet:"name=height, type=INT64"`
	Sequence  int64  `parquet:"name=sequence, type=INT64"`
	Type      string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Delegator string `parquet:"name=delegator, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Delegate  string `parquet:"name=delegate, type=UTF8, encoding=PLAIN_DICTIONARY"`
	From      string `parquet:"name=from_account, type=UTF8, encoding=PLAIN_DICTIONARY"`
	To        string `parquet:"name=to_account, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Previous  string `parquet:"name=previous, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Current   string `parquet:"name=current, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Amount    string `parquet:"name=amount, type=UTF8, encoding=PLAIN_DICTIONARY"`
	CreatedAt string `parquet:"name=created_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

func parquetRowFor(rec *EventRecord) *parquetRow {
	return &parquetRow{
		ID:        rec.ID.String(),
		Height:    int64(rec.Height),
		Sequence:  int64(rec.Sequence),
		Type:      rec.Type,
		Delegator: rec.Delegator,
		Delegate:  rec.Delegate,
		From:      rec.From,
		To:        rec.To,
		Previous:  rec.Previous,
		Current:   rec.Current,
		Amount:    rec.Amount,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ExportParquet writes every indexed event at or above fromHeight to a
// snappy-compressed parquet file at path, in ledger order. It returns the
// number of rows written.
func ExportParquet(ctx context.Context, db *gorm.DB, path string, fromHeight uint64) (int, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("indexer: create parquet: %w", err)
	}
	defer file.Close()

	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), new(parquetRow), 1)
	if err != nil {
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	var last *EventRecord
	for {
		query := db.WithContext(ctx).Order("height ASC, sequence ASC").Limit(exportBatchSize)
		if last == nil {
			query = query.Where("height >= ?", fromHeight)
		} else {
			query = query.Where("height > ? OR (height = ? AND sequence > ?)", last.Height, last.Height, last.Sequence)
		}
		var batch []EventRecord
		if err := query.Find(&batch).Error; err != nil {
			_ = pw.WriteStop()
			return written, fmt.Errorf("indexer: read events: %w", err)
		}
		for i := range batch {
			if err := pw.Write(parquetRowFor(&batch[i])); err != nil {
				_ = pw.WriteStop()
				return written, fmt.Errorf("indexer: write parquet row: %w", err)
			}
			written++
		}
		if len(batch) < exportBatchSize {
			break
		}
		last = &batch[len(batch)-1]
	}
	if err := pw.WriteStop(); err != nil {
		return written, fmt.Errorf("indexer: finalize parquet: %w", err)
	}
	return written, nil
}
