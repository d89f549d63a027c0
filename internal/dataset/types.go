package dataset

import (
	"fmt"
	"strings"
)

// DataType is a dialect-neutral column type. Dialects map it to concrete
// type names when rendering DDL.
type DataType string

const (
	Int       DataType = "INT"
	Integer   DataType = "INTEGER"
	BigInt    DataType = "BIGINT"
	SmallInt  DataType = "SMALLINT"
	TinyInt   DataType = "TINYINT"
	Varchar   DataType = "VARCHAR"
	Char      DataType = "CHAR"
	Text      DataType = "TEXT"
	String    DataType = "STRING"
	Double    DataType = "DOUBLE"
	Float     DataType = "FLOAT"
	Real      DataType = "REAL"
	Decimal   DataType = "DECIMAL"
	Numeric   DataType = "NUMERIC"
	Boolean   DataType = "BOOLEAN"
	Date      DataType = "DATE"
	Time      DataType = "TIME"
	DateTime  DataType = "DATETIME"
	Timestamp DataType = "TIMESTAMP"
	JSON      DataType = "JSON"
)

var knownTypes = map[DataType]struct{}{
	Int: {}, Integer: {}, BigInt: {}, SmallInt: {}, TinyInt: {},
	Varchar: {}, Char: {}, Text: {}, String: {},
	Double: {}, Float: {}, Real: {}, Decimal: {}, Numeric: {},
	Boolean: {}, Date: {}, Time: {}, DateTime: {}, Timestamp: {}, JSON: {},
}

// ParseDataType resolves a case-insensitive type name.
func ParseDataType(s string) (DataType, error) {
	t := DataType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("unknown data type %q", s)
	}
	return t, nil
}

// IsNumeric reports whether values of this type compare numerically.
func (t DataType) IsNumeric() bool {
	switch t {
	case Int, Integer, BigInt, SmallInt, TinyInt, Double, Float, Real, Decimal, Numeric:
		return true
	}
	return false
}

// IsTemporal reports whether values of this type are dates or times.
func (t DataType) IsTemporal() bool {
	switch t {
	case Date, Time, DateTime, Timestamp:
		return true
	}
	return false
}

// FieldType is a data type with optional length/precision and scale.
type FieldType struct {
	Type   DataType `json:"type"`
	Length *int     `json:"length,omitempty"`
	Scale  *int     `json:"scale,omitempty"`
}

// Field is one column of a schema.
type Field struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	PrimaryKey bool      `json:"primary_key,omitempty"`
	NotNull    bool      `json:"not_null,omitempty"`
}
