// Package recordsio publishes aggregated hex cell records as parquet
// files, one per (tile, band group) unit.
package recordsio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"hexingest/tilebin"
)

const writeChunkRows = 64 * 1024

// CellRow is the columnar output schema: exactly three logical columns.
type CellRow struct {
	CellID string `parquet:"cell_id, type=UTF8"`
	Band   string `parquet:"band, type=UTF8"`
	Value  int16  `parquet:"value"`
}

// ParquetWriter writes each unit to Dir. Writes go to a temporary sibling
// and are renamed into place on success only, so concurrent units and
// interrupted runs never leave a partial output behind.
type ParquetWriter struct {
	Dir string
}

// OutputPath is the deterministic destination for a unit, keyed so that
// concurrent unit writes can never collide.
func (w *ParquetWriter) OutputPath(tileID, bandGroup string) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s_%s.parquet", tileID, bandGroup))
}

func (w *ParquetWriter) WriteRecords(ctx context.Context, tileID, bandGroup string, records []tilebin.HexCellRecord) (string, error) {
	final := w.OutputPath(tileID, bandGroup)
	tmp := final + ".tmp-" + uuid.NewString()

	if err := w.writeFile(ctx, tmp, records); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			logrus.Error(rmErr)
		}
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			logrus.Error(rmErr)
		}
		return "", err
	}
	return final, nil
}

func (w *ParquetWriter) writeFile(ctx context.Context, path string, records []tilebin.HexCellRecord) (err error) {
	output, err := os.Create(path)
	if err != nil {
		return err
	}

	schema := parquet.SchemaOf(new(CellRow))
	writer := parquet.NewGenericWriter[CellRow](output, schema, parquet.Compression(&parquet.Snappy))
	defer func() {
		if cerr := writer.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if cerr := output.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rowBuf := make([]CellRow, 0, writeChunkRows)
	for i, rec := range records {
		rowBuf = append(rowBuf, CellRow{CellID: rec.CellID, Band: rec.Band, Value: rec.Value})
		if len(rowBuf) == writeChunkRows || i == len(records)-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := writer.Write(rowBuf); err != nil {
				return err
			}
			if err := writer.Flush(); err != nil {
				return err
			}
			rowBuf = rowBuf[:0]
		}
	}
	return nil
}
