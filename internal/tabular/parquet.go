package tabular

import (
	"fmt"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ArrowSchema returns the Arrow schema for the extract. All fields are nullable.
func ArrowSchema(e *Extract) *arrow.Schema {
	fields := make([]arrow.Field, len(e.Columns))
	for i, c := range e.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t ColumnType) arrow.DataType {
	switch t {
	case TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case TypeTimestamp:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	default:
		return arrow.BinaryTypes.String
	}
}

// Record builds an Arrow record from the extract. The caller releases it.
func Record(e *Extract, mem memory.Allocator) arrow.Record {
	b := array.NewRecordBuilder(mem, ArrowSchema(e))
	defer b.Release()

	for i, c := range e.Columns {
		fb := b.Field(i)
		for _, v := range c.Values {
			appendValue(fb, c.Type, v)
		}
	}
	return b.NewRecord()
}

func appendValue(fb array.Builder, t ColumnType, v any) {
	if v == nil {
		fb.AppendNull()
		return
	}
	switch t {
	case TypeInteger:
		if n, ok := v.(int64); ok {
			fb.(*array.Int64Builder).Append(n)
			return
		}
	case TypeFloat:
		if f, ok := v.(float64); ok {
			fb.(*array.Float64Builder).Append(f)
			return
		}
	case TypeBoolean:
		if bv, ok := v.(bool); ok {
			fb.(*array.BooleanBuilder).Append(bv)
			return
		}
	case TypeTimestamp:
		if ts, ok := v.(time.Time); ok {
			fb.(*array.TimestampBuilder).Append(arrow.Timestamp(ts.UTC().UnixMicro()))
			return
		}
	default:
		fb.(*array.StringBuilder).Append(FormatValue(v))
		return
	}
	// A cell that did not convert to the column type.
	fb.AppendNull()
}

// WriteParquet writes the extract as a Snappy-compressed Parquet file.
func WriteParquet(w io.Writer, e *Extract) error {
	rec := Record(e, memory.DefaultAllocator)
	defer rec.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	writer, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write parquet record: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
