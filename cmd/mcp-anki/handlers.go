// Package main implements the AnkiConnect MCP proxy server.
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mcp-anki/mcp-anki/internal/ankiconnect"
	"go.uber.org/zap"
)

// Every handler follows the same three-step shape: validate the arguments
// (a validation failure is returned before any network call happens), run
// the matching typed AnkiConnect action, and marshal the result or the
// translated error. No handler keeps state between calls.

// serviceFromContext retrieves the shared AnkiService the server injected.
func serviceFromContext(ctx context.Context) (*AnkiService, *mcp.CallToolResult) {
	s, ok := ctx.Value("service").(*AnkiService)
	if !ok || s == nil {
		return nil, mcp.NewToolResultError("Error: Service not available")
	}
	return s, nil
}

// errorResult renders any proxy error as the structured {kind, error}
// failure body the MCP caller receives.
func errorResult(err error) *mcp.CallToolResult {
	kind := ankiconnect.KindOf(err)
	if kind == "" {
		kind = ankiconnect.KindProtocol
	}
	body, merr := json.Marshal(ErrorResponse{Kind: string(kind), Error: ankiconnect.MessageOf(err)})
	if merr != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(string(body))
}

func validationErrorf(format string, args ...any) *mcp.CallToolResult {
	return errorResult(ankiconnect.Validationf(format, args...))
}

// jsonResult marshals a successful result as an indented JSON text body.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// --- Argument extraction ---

func requiredString(request mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	v, ok := request.Params.Arguments[name].(string)
	if !ok || v == "" {
		return "", validationErrorf("missing required parameter: %s", name)
	}
	return v, nil
}

func optionalString(request mcp.CallToolRequest, name string) string {
	v, _ := request.Params.Arguments[name].(string)
	return v
}

func optionalBool(request mcp.CallToolRequest, name string) bool {
	v, _ := request.Params.Arguments[name].(bool)
	return v
}

// requiredID extracts a single numeric identifier. JSON numbers arrive as
// float64; Anki IDs are millisecond timestamps and fit exactly.
func requiredID(request mcp.CallToolRequest, name string) (int64, *mcp.CallToolResult) {
	v, ok := request.Params.Arguments[name].(float64)
	if !ok {
		return 0, validationErrorf("missing required parameter: %s", name)
	}
	return int64(v), nil
}

func requiredIDs(request mcp.CallToolRequest, name string) ([]int64, *mcp.CallToolResult) {
	raw, ok := request.Params.Arguments[name].([]interface{})
	if !ok {
		return nil, validationErrorf("missing required parameter: %s", name)
	}
	ids := make([]int64, 0, len(raw))
	for _, item := range raw {
		f, ok := item.(float64)
		if !ok {
			return nil, validationErrorf("parameter %s must contain only numeric IDs", name)
		}
		ids = append(ids, int64(f))
	}
	return ids, nil
}

func stringList(raw []interface{}, name string) ([]string, *mcp.CallToolResult) {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, validationErrorf("parameter %s must contain only strings", name)
		}
		out = append(out, s)
	}
	return out, nil
}

func requiredStringList(request mcp.CallToolRequest, name string) ([]string, *mcp.CallToolResult) {
	raw, ok := request.Params.Arguments[name].([]interface{})
	if !ok {
		return nil, validationErrorf("missing required parameter: %s", name)
	}
	return stringList(raw, name)
}

func optionalStringList(request mcp.CallToolRequest, name string) ([]string, *mcp.CallToolResult) {
	raw, ok := request.Params.Arguments[name].([]interface{})
	if !ok {
		return nil, nil
	}
	return stringList(raw, name)
}

func requiredStringMap(request mcp.CallToolRequest, name string) (map[string]string, *mcp.CallToolResult) {
	raw, ok := request.Params.Arguments[name].(map[string]interface{})
	if !ok {
		return nil, validationErrorf("missing required parameter: %s", name)
	}
	out := make(map[string]string, len(raw))
	for k, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, validationErrorf("parameter %s must map field names to strings", name)
		}
		out[k] = s
	}
	return out, nil
}

// noteFromMap builds an ankiconnect.Note from one element of a notes array
// argument, reusing the same field names as anki_add_note.
func noteFromMap(m map[string]interface{}, position int) (ankiconnect.Note, *mcp.CallToolResult) {
	var note ankiconnect.Note
	var ok bool
	if note.DeckName, ok = m["deck_name"].(string); !ok || note.DeckName == "" {
		return note, validationErrorf("note %d: missing required parameter: deck_name", position)
	}
	if note.ModelName, ok = m["model_name"].(string); !ok || note.ModelName == "" {
		return note, validationErrorf("note %d: missing required parameter: model_name", position)
	}
	rawFields, ok := m["fields"].(map[string]interface{})
	if !ok {
		return note, validationErrorf("note %d: missing required parameter: fields", position)
	}
	note.Fields = make(map[string]string, len(rawFields))
	for k, item := range rawFields {
		s, ok := item.(string)
		if !ok {
			return note, validationErrorf("note %d: fields must map field names to strings", position)
		}
		note.Fields[k] = s
	}
	if rawTags, ok := m["tags"].([]interface{}); ok {
		tags, errResult := stringList(rawTags, "tags")
		if errResult != nil {
			return note, errResult
		}
		note.Tags = tags
	}
	if allowDuplicate, ok := m["allow_duplicate"].(bool); ok && allowDuplicate {
		note.Options = &ankiconnect.NoteOptions{AllowDuplicate: true}
	}
	return note, nil
}

// --- Card handlers ---

// handleFindCards forwards an Anki search query and returns the matching
// card IDs in the order the endpoint produced them.
func handleFindCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	query, errResult := requiredString(request, "query")
	if errResult != nil {
		return errResult, nil
	}

	ids, err := s.Client.FindCards(ctx, query)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(ids)
}

func handleCardsInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	info, err := s.Client.CardsInfo(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(info)
}

func handleCardsToNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	notes, err := s.Client.CardsToNotes(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(notes)
}

func handleGetEaseFactors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	factors, err := s.Client.GetEaseFactors(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(factors)
}

// handleSetEaseFactors sets per-card ease factors. The two lists must pair
// up one to one; Anki owns the interpretation of the values.
func handleSetEaseFactors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}
	factors, errResult := requiredIDs(request, "ease_factors")
	if errResult != nil {
		return errResult, nil
	}
	if len(cards) != len(factors) {
		return validationErrorf("card_ids and ease_factors must have the same length"), nil
	}

	applied, err := s.Client.SetEaseFactors(ctx, cards, factors)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(applied)
}

func handleSuspendCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	changed, err := s.Client.SuspendCards(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: changed})
}

func handleUnsuspendCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	changed, err := s.Client.UnsuspendCards(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: changed})
}

func handleAreSuspended(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	states, err := s.Client.AreSuspended(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(states)
}

func handleAreDue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	due, err := s.Client.AreDue(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(due)
}

// handleGetIntervals passes the result through undecoded because its shape
// depends on the complete flag.
func handleGetIntervals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	raw, err := s.Client.GetIntervals(ctx, cards, optionalBool(request, "complete"))
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func handleForgetCards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.ForgetCards(ctx, cards); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("%d card(s) reset to new", len(cards))})
}

func handleSetDueDate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}
	days, errResult := requiredString(request, "days")
	if errResult != nil {
		return errResult, nil
	}

	changed, err := s.Client.SetDueDate(ctx, cards, days)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: changed})
}

// --- Deck handlers ---

func handleDeckNames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	names, err := s.Client.DeckNames(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(names)
}

func handleDeckNamesAndIDs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	decks, err := s.Client.DeckNamesAndIDs(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(decks)
}

func handleGetDecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}

	decks, err := s.Client.GetDecks(ctx, cards)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(decks)
}

func handleCreateDeck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	deck, errResult := requiredString(request, "deck")
	if errResult != nil {
		return errResult, nil
	}

	id, err := s.Client.CreateDeck(ctx, deck)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(CreateDeckResponse{DeckID: id})
}

func handleRenameDeck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	deck, errResult := requiredString(request, "deck")
	if errResult != nil {
		return errResult, nil
	}
	newName, errResult := requiredString(request, "new_name")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.RenameDeck(ctx, deck, newName); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Deck %q renamed to %q", deck, newName)})
}

// handleDeleteDecks requires an explicit cards_too confirmation because
// deleting a deck deletes every card in it.
func handleDeleteDecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	decks, errResult := requiredStringList(request, "decks")
	if errResult != nil {
		return errResult, nil
	}
	if !optionalBool(request, "cards_too") {
		return validationErrorf("cards_too must be true to confirm deleting the decks' cards"), nil
	}

	if err := s.Client.DeleteDecks(ctx, decks); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("%d deck(s) deleted", len(decks))})
}

func handleChangeDeck(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	cards, errResult := requiredIDs(request, "card_ids")
	if errResult != nil {
		return errResult, nil
	}
	deck, errResult := requiredString(request, "deck")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.ChangeDeck(ctx, cards, deck); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("%d card(s) moved to deck %q", len(cards), deck)})
}

func handleGetDeckStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	decks, errResult := requiredStringList(request, "decks")
	if errResult != nil {
		return errResult, nil
	}

	stats, err := s.Client.GetDeckStats(ctx, decks)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(stats)
}

// --- Note handlers ---

// handleAddNote creates one note. deck_name, model_name and fields are
// forwarded verbatim; omitted tags leave the note untagged.
func handleAddNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	note, errResult := noteFromMap(request.Params.Arguments, 0)
	if errResult != nil {
		return errResult, nil
	}

	s.Logger.Debug("adding note",
		zap.String("deck", note.DeckName),
		zap.String("model", note.ModelName),
		zap.Strings("tags", note.Tags))

	id, err := s.Client.AddNote(ctx, note)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(AddNoteResponse{NoteID: id})
}

func notesFromRequest(request mcp.CallToolRequest) ([]ankiconnect.Note, *mcp.CallToolResult) {
	raw, ok := request.Params.Arguments["notes"].([]interface{})
	if !ok {
		return nil, validationErrorf("missing required parameter: notes")
	}
	notes := make([]ankiconnect.Note, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, validationErrorf("note %d: each note must be an object", i)
		}
		note, errResult := noteFromMap(m, i)
		if errResult != nil {
			return nil, errResult
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func handleAddNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	notes, errResult := notesFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}

	ids, err := s.Client.AddNotes(ctx, notes)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(AddNotesResponse{NoteIDs: ids})
}

func handleCanAddNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	notes, errResult := notesFromRequest(request)
	if errResult != nil {
		return errResult, nil
	}

	addable, err := s.Client.CanAddNotes(ctx, notes)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(addable)
}

func handleFindNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	query, errResult := requiredString(request, "query")
	if errResult != nil {
		return errResult, nil
	}

	ids, err := s.Client.FindNotes(ctx, query)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(ids)
}

// handleNotesInfo accepts note_ids or query, exactly one of the two.
func handleNotesInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	_, haveIDs := request.Params.Arguments["note_ids"]
	query := optionalString(request, "query")
	if haveIDs == (query != "") {
		return validationErrorf("provide exactly one of note_ids or query"), nil
	}

	var notes []int64
	if haveIDs {
		notes, errResult = requiredIDs(request, "note_ids")
		if errResult != nil {
			return errResult, nil
		}
	}

	info, err := s.Client.NotesInfo(ctx, notes, query)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(info)
}

func handleUpdateNoteFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	noteID, errResult := requiredID(request, "note_id")
	if errResult != nil {
		return errResult, nil
	}
	fields, errResult := requiredStringMap(request, "fields")
	if errResult != nil {
		return errResult, nil
	}

	err := s.Client.UpdateNoteFields(ctx, ankiconnect.NoteFieldsUpdate{ID: noteID, Fields: fields})
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Note %d fields updated", noteID)})
}

// handleUpdateNote updates fields and/or tags of a note; at least one of
// the two must be present.
func handleUpdateNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	noteID, errResult := requiredID(request, "note_id")
	if errResult != nil {
		return errResult, nil
	}

	update := ankiconnect.NoteUpdate{ID: noteID}
	if _, ok := request.Params.Arguments["fields"]; ok {
		fields, errResult := requiredStringMap(request, "fields")
		if errResult != nil {
			return errResult, nil
		}
		update.Fields = fields
	}
	if _, ok := request.Params.Arguments["tags"]; ok {
		tags, errResult := requiredStringList(request, "tags")
		if errResult != nil {
			return errResult, nil
		}
		update.Tags = tags
	}
	if update.Fields == nil && update.Tags == nil {
		return validationErrorf("provide at least one of fields or tags"), nil
	}

	if err := s.Client.UpdateNote(ctx, update); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Note %d updated", noteID)})
}

func handleDeleteNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	notes, errResult := requiredIDs(request, "note_ids")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.DeleteNotes(ctx, notes); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("%d note(s) deleted", len(notes))})
}

func handleGetNoteTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	noteID, errResult := requiredID(request, "note_id")
	if errResult != nil {
		return errResult, nil
	}

	tags, err := s.Client.GetNoteTags(ctx, noteID)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tags)
}

func handleUpdateNoteTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	noteID, errResult := requiredID(request, "note_id")
	if errResult != nil {
		return errResult, nil
	}
	tags, errResult := requiredStringList(request, "tags")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.UpdateNoteTags(ctx, noteID, tags); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Note %d tags replaced", noteID)})
}

func handleAddTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	notes, errResult := requiredIDs(request, "note_ids")
	if errResult != nil {
		return errResult, nil
	}
	tags, errResult := requiredStringList(request, "tags")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.AddTags(ctx, notes, tags); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Tags added to %d note(s)", len(notes))})
}

func handleRemoveTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	notes, errResult := requiredIDs(request, "note_ids")
	if errResult != nil {
		return errResult, nil
	}
	tags, errResult := requiredStringList(request, "tags")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.RemoveTags(ctx, notes, tags); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Tags removed from %d note(s)", len(notes))})
}

func handleGetTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	tags, err := s.Client.GetTags(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(tags)
}

func handleRemoveEmptyNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.RemoveEmptyNotes(ctx); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: "Empty notes removed"})
}

// --- Model handlers ---

func handleModelNames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	names, err := s.Client.ModelNames(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(names)
}

func handleModelNamesAndIDs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	models, err := s.Client.ModelNamesAndIDs(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(models)
}

func handleModelFieldNames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}

	fields, err := s.Client.ModelFieldNames(ctx, modelName)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(fields)
}

func handleModelTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}

	templates, err := s.Client.ModelTemplates(ctx, modelName)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(templates)
}

func handleModelStyling(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}

	styling, err := s.Client.ModelStyling(ctx, modelName)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(styling)
}

func cardTemplateFromMap(m map[string]interface{}, position int) (ankiconnect.CardTemplate, *mcp.CallToolResult) {
	var tmpl ankiconnect.CardTemplate
	tmpl.Name, _ = m["name"].(string)
	var ok bool
	if tmpl.Front, ok = m["front"].(string); !ok || tmpl.Front == "" {
		return tmpl, validationErrorf("card template %d: missing required parameter: front", position)
	}
	if tmpl.Back, ok = m["back"].(string); !ok || tmpl.Back == "" {
		return tmpl, validationErrorf("card template %d: missing required parameter: back", position)
	}
	return tmpl, nil
}

// handleCreateModel creates a note type. The new model object is returned
// as Anki built it, whole-object, since the proxy never diffs templates.
func handleCreateModel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	fields, errResult := requiredStringList(request, "in_order_fields")
	if errResult != nil {
		return errResult, nil
	}
	rawTemplates, ok := request.Params.Arguments["card_templates"].([]interface{})
	if !ok || len(rawTemplates) == 0 {
		return validationErrorf("missing required parameter: card_templates"), nil
	}
	templates := make([]ankiconnect.CardTemplate, 0, len(rawTemplates))
	for i, item := range rawTemplates {
		m, ok := item.(map[string]interface{})
		if !ok {
			return validationErrorf("card template %d: each template must be an object", i), nil
		}
		tmpl, errResult := cardTemplateFromMap(m, i)
		if errResult != nil {
			return errResult, nil
		}
		templates = append(templates, tmpl)
	}

	raw, err := s.Client.CreateModel(ctx, ankiconnect.CreateModelRequest{
		ModelName:     modelName,
		InOrderFields: fields,
		CSS:           optionalString(request, "css"),
		IsCloze:       optionalBool(request, "is_cloze"),
		CardTemplates: templates,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func handleUpdateModelTemplates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	rawTemplates, ok := request.Params.Arguments["templates"].(map[string]interface{})
	if !ok || len(rawTemplates) == 0 {
		return validationErrorf("missing required parameter: templates"), nil
	}
	templates := make(map[string]ankiconnect.CardTemplateSides, len(rawTemplates))
	for name, item := range rawTemplates {
		m, ok := item.(map[string]interface{})
		if !ok {
			return validationErrorf("template %q must be an object with front and back", name), nil
		}
		front, frontOK := m["front"].(string)
		back, backOK := m["back"].(string)
		if !frontOK || !backOK {
			return validationErrorf("template %q must have string front and back", name), nil
		}
		templates[name] = ankiconnect.CardTemplateSides{Front: front, Back: back}
	}

	if err := s.Client.UpdateModelTemplates(ctx, modelName, templates); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Model %q templates updated", modelName)})
}

func handleUpdateModelStyling(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	css, errResult := requiredString(request, "css")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.UpdateModelStyling(ctx, modelName, css); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Model %q styling updated", modelName)})
}

func handleModelFieldAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	fieldName, errResult := requiredString(request, "field_name")
	if errResult != nil {
		return errResult, nil
	}
	index := 0
	if f, ok := request.Params.Arguments["index"].(float64); ok {
		index = int(f)
	}

	if err := s.Client.ModelFieldAdd(ctx, modelName, fieldName, index); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Field %q added to model %q", fieldName, modelName)})
}

func handleModelFieldRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	fieldName, errResult := requiredString(request, "field_name")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.ModelFieldRemove(ctx, modelName, fieldName); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Field %q removed from model %q", fieldName, modelName)})
}

func handleModelFieldRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	oldName, errResult := requiredString(request, "old_field_name")
	if errResult != nil {
		return errResult, nil
	}
	newName, errResult := requiredString(request, "new_field_name")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.ModelFieldRename(ctx, modelName, oldName, newName); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Field %q renamed to %q in model %q", oldName, newName, modelName)})
}

func handleModelTemplateAdd(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	rawTemplate, ok := request.Params.Arguments["template"].(map[string]interface{})
	if !ok {
		return validationErrorf("missing required parameter: template"), nil
	}
	tmpl, errResult := cardTemplateFromMap(rawTemplate, 0)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.ModelTemplateAdd(ctx, modelName, tmpl); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Template added to model %q", modelName)})
}

func handleModelTemplateRemove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}
	modelName, errResult := requiredString(request, "model_name")
	if errResult != nil {
		return errResult, nil
	}
	templateName, errResult := requiredString(request, "template_name")
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.ModelTemplateRemove(ctx, modelName, templateName); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: fmt.Sprintf("Template %q removed from model %q", templateName, modelName)})
}

// --- Miscellaneous handlers ---

func handleVersion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	version, err := s.Client.Version(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(VersionResponse{Version: version})
}

func handleSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	if err := s.Client.Sync(ctx); err != nil {
		return errorResult(err), nil
	}
	return jsonResult(StatusResponse{Success: true, Message: "Collection sync started"})
}

func handleRequestPermission(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, errResult := serviceFromContext(ctx)
	if errResult != nil {
		return errResult, nil
	}

	permission, err := s.Client.RequestPermission(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(permission)
}

// --- Resource handlers ---

// handleDecksResource serves the deck list as a JSON resource so clients
// can discover valid deck names without a tool call.
func handleDecksResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s, ok := ctx.Value("service").(*AnkiService)
	if !ok || s == nil {
		return nil, fmt.Errorf("service not available")
	}

	names, err := s.Client.DeckNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing decks: %w", err)
	}
	jsonBytes, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling deck names: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "anki://decks",
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

// handleTagsResource serves every tag in the collection.
func handleTagsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s, ok := ctx.Value("service").(*AnkiService)
	if !ok || s == nil {
		return nil, fmt.Errorf("service not available")
	}

	tags, err := s.Client.GetTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	jsonBytes, err := json.MarshalIndent(tags, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling tags: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "anki://tags",
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
