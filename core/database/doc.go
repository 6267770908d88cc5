// Package database manages the GORM connection used by SQL-backed datasets.
//
// MySQL is the primary dialect; SQLite is supported for file-backed tables
// and for tests. Connections are pooled and verified with a ping before
// they are handed out.
package database
