package domain

// EntryRecord is a WindowEntry as published by one stream session.
// (SessionID, Seq) identifies a record.
type EntryRecord struct {
	SessionID string      `json:"session_id"`
	Seq       int64       `json:"seq"` // position within the session, from 0
	Entry     WindowEntry `json:"entry"`
}
