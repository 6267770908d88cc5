// Package utils provides scalar conversion helpers.
//
// Different backends hand back different Go types for the same logical
// value: a MySQL driver returns []byte for text and int64 for integers, a
// JSON feature service returns float64 for every number. The helpers here
// normalize those variations so records from different backends can be
// keyed and compared.
package utils
