package geopackage

import "strings"

// DataType is a GeoPackage column data type.
type DataType int

const (
	DataTypeUnknown DataType = iota
	DataTypeBoolean
	DataTypeTinyInt
	DataTypeSmallInt
	DataTypeMediumInt
	DataTypeInt
	DataTypeInteger
	DataTypeFloat
	DataTypeDouble
	DataTypeReal
	DataTypeText
	DataTypeBlob
	DataTypeDate
	DataTypeDateTime
	DataTypeGeometry
)

var dataTypeNames = map[DataType]string{
	DataTypeBoolean:   "BOOLEAN",
	DataTypeTinyInt:   "TINYINT",
	DataTypeSmallInt:  "SMALLINT",
	DataTypeMediumInt: "MEDIUMINT",
	DataTypeInt:       "INT",
	DataTypeInteger:   "INTEGER",
	DataTypeFloat:     "FLOAT",
	DataTypeDouble:    "DOUBLE",
	DataTypeReal:      "REAL",
	DataTypeText:      "TEXT",
	DataTypeBlob:      "BLOB",
	DataTypeDate:      "DATE",
	DataTypeDateTime:  "DATETIME",
	DataTypeGeometry:  "GEOMETRY",
}

// geometryTypes are the geometry type names allowed as GeoPackage column types.
var geometryTypes = map[string]bool{
	"GEOMETRY": true, "POINT": true, "LINESTRING": true, "POLYGON": true,
	"MULTIPOINT": true, "MULTILINESTRING": true, "MULTIPOLYGON": true,
	"GEOMETRYCOLLECTION": true, "CIRCULARSTRING": true, "COMPOUNDCURVE": true,
	"CURVEPOLYGON": true, "MULTICURVE": true, "MULTISURFACE": true,
	"CURVE": true, "SURFACE": true,
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsText reports whether values of the type are written as quoted strings.
func (t DataType) IsText() bool {
	return t == DataTypeText || t == DataTypeDate || t == DataTypeDateTime
}

// ParseDataType maps a declared column type ("TEXT(50)", "integer", "POINT")
// to a GeoPackage data type.
func ParseDataType(declared string) DataType {
	base := strings.ToUpper(baseTypeName(declared))
	switch base {
	case "BOOLEAN", "BOOL":
		return DataTypeBoolean
	case "TINYINT":
		return DataTypeTinyInt
	case "SMALLINT":
		return DataTypeSmallInt
	case "MEDIUMINT":
		return DataTypeMediumInt
	case "INT":
		return DataTypeInt
	case "INTEGER", "BIGINT":
		return DataTypeInteger
	case "FLOAT":
		return DataTypeFloat
	case "DOUBLE":
		return DataTypeDouble
	case "REAL":
		return DataTypeReal
	case "TEXT", "VARCHAR", "CHAR", "CLOB":
		return DataTypeText
	case "BLOB":
		return DataTypeBlob
	case "DATE":
		return DataTypeDate
	case "DATETIME", "TIMESTAMP":
		return DataTypeDateTime
	}
	if geometryTypes[base] {
		return DataTypeGeometry
	}
	return DataTypeUnknown
}

// baseTypeName extracts the type name before any size parameters.
func baseTypeName(declaredType string) string {
	dt := strings.TrimSpace(declaredType)
	if idx := strings.IndexByte(dt, '('); idx >= 0 {
		dt = dt[:idx]
	}
	return strings.TrimSpace(dt)
}
