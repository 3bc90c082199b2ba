package repository

import "database/sql"

// nullStringValue はsql.NullStringから文字列を取り出す。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// toNullString は空文字列をNULLとして扱うsql.NullStringを生成する。
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
