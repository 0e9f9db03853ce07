// Package main implements the AnkiConnect MCP proxy server.
package main

// ErrorResponse is the structured failure returned for every failed tool
// call: a machine-readable kind tag plus the human-readable message. For
// remote action failures the message is Anki's own text, verbatim.
type ErrorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// StatusResponse reports the outcome of actions whose remote result
// carries no data of its own.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CreateDeckResponse is the response structure for anki_create_deck.
type CreateDeckResponse struct {
	DeckID int64 `json:"deck_id"`
}

// AddNoteResponse is the response structure for anki_add_note.
type AddNoteResponse struct {
	NoteID int64 `json:"note_id"`
}

// AddNotesResponse is the response structure for anki_add_notes; a nil
// entry marks a note Anki refused to add.
type AddNotesResponse struct {
	NoteIDs []*int64 `json:"note_ids"`
}

// VersionResponse is the response structure for anki_version.
type VersionResponse struct {
	Version int `json:"version"`
}
