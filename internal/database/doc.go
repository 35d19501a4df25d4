// Package database is the sqlite-backed record store. It keeps five logical
// collections per library base name: the per-photo metadata records, face
// detection records, person records, meta items (collections, tags, folders,
// filter cursors) and the membership edges linking photos to meta items.
package database
