package tables

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

// ParquetRow is the parquet layout of a DailyCellRecord.
type ParquetRow struct {
	DateID    string   `parquet:"DateId,zstd"`
	Cell      string   `parquet:"Cell,zstd"`
	SiteID    string   `parquet:"SiteId,zstd"`
	SiteName  string   `parquet:"SiteName,zstd"`
	Sector    int32    `parquet:"Sector"`
	Band      string   `parquet:"Band,dict"`
	NeID      string   `parquet:"NeId,zstd"`
	Distr50   *float64 `parquet:"Distr50,optional"`
	Distr80   *float64 `parquet:"Distr80,optional"`
	Distr90   *float64 `parquet:"Distr90,optional"`
	Distr95   *float64 `parquet:"Distr95,optional"`
	Distr100  *float64 `parquet:"Distr100,optional"`
	TotSample int64    `parquet:"TotSample"`
}

// ToParquetRow converts r to its parquet layout.
func (r DailyCellRecord) ToParquetRow() ParquetRow {
	return ParquetRow{
		DateID:    r.DateString(),
		Cell:      r.Cell,
		SiteID:    r.SiteID,
		SiteName:  r.SiteName,
		Sector:    int32(r.Sector),
		Band:      string(r.Band),
		NeID:      r.NeID,
		Distr50:   r.Distr50,
		Distr80:   r.Distr80,
		Distr90:   r.Distr90,
		Distr95:   r.Distr95,
		Distr100:  r.Distr100,
		TotSample: r.TotSample,
	}
}

// parquetCodec maps a compression name to a codec. Unknown names fall back
// to zstd.
func parquetCodec(name string) compress.Codec {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "gzip":
		return &parquet.Gzip
	case "lz4":
		return &parquet.Lz4Raw
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Zstd
	}
}

// EncodeParquet writes records as a single parquet file in memory.
func EncodeParquet(records []DailyCellRecord, compression string) ([]byte, error) {
	rows := make([]ParquetRow, len(records))
	for i := range records {
		rows[i] = records[i].ToParquetRow()
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[ParquetRow](&buf, parquet.Compression(parquetCodec(compression)))
	if _, err := w.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
