package tables

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Format identifies one artifact encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCSVZstd Format = "csv.zst"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
)

// Extension returns the file extension for f, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// EncodeOptions selects the optional encodings. CSV is always produced.
type EncodeOptions struct {
	Parquet            bool
	ParquetCompression string
	XLSX               bool
	Zstd               bool
}

// Artifact is one encoded copy of the batch.
type Artifact struct {
	Format   Format
	Data     []byte
	Checksum string
	Rows     int64
}

// Output holds every encoded copy of one batch, CSV first.
type Output struct {
	Artifacts []Artifact
}

// Primary returns the CSV artifact.
func (o *Output) Primary() Artifact {
	return o.Artifacts[0]
}

// Encode produces the artifacts for records.
func Encode(records []DailyCellRecord, opts EncodeOptions) (*Output, error) {
	rows := int64(len(records))
	out := &Output{}

	csvData, err := EncodeCSV(records)
	if err != nil {
		return nil, err
	}
	out.add(FormatCSV, csvData, rows)

	if opts.Zstd {
		compressed, err := CompressZstd(csvData)
		if err != nil {
			return nil, err
		}
		out.add(FormatCSVZstd, compressed, rows)
	}
	if opts.Parquet {
		data, err := EncodeParquet(records, opts.ParquetCompression)
		if err != nil {
			return nil, err
		}
		out.add(FormatParquet, data, rows)
	}
	if opts.XLSX {
		data, err := EncodeXLSX(records)
		if err != nil {
			return nil, err
		}
		out.add(FormatXLSX, data, rows)
	}
	return out, nil
}

func (o *Output) add(f Format, data []byte, rows int64) {
	o.Artifacts = append(o.Artifacts, Artifact{
		Format:   f,
		Data:     data,
		Checksum: ComputeChecksum(data),
		Rows:     rows,
	})
}

// CompressZstd compresses data in one shot.
func CompressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// ComputeChecksum returns the "sha256:<hex>" digest of data.
func ComputeChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// VerifyChecksum reports whether data matches expected.
func VerifyChecksum(data []byte, expected string) bool {
	return ComputeChecksum(data) == expected
}
