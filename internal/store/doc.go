// Package store persists account records in SQLite and provides bulk
// import/export of credential text files.
package store
