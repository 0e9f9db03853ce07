package ankiconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// invoke runs an action and decodes its result into T. A null result is
// left as T's zero value. Unknown fields in the payload are ignored; only
// payloads that cannot be decoded into T at all are protocol errors.
func invoke[T any](ctx context.Context, c *Client, action string, params any) (T, error) {
	var out T
	raw, err := c.Invoke(ctx, action, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Kind: KindProtocol, Message: fmt.Sprintf("decoding %s result", action), Err: err}
	}
	return out, nil
}

// invokeVoid runs an action whose result carries no information.
func invokeVoid(ctx context.Context, c *Client, action string, params any) error {
	_, err := c.Invoke(ctx, action, params)
	return err
}

// --- Card actions ---

// FindCards returns the card IDs matching an Anki search query. The query
// string is forwarded verbatim; its grammar belongs to Anki.
func (c *Client) FindCards(ctx context.Context, query string) ([]int64, error) {
	return invoke[[]int64](ctx, c, "findCards", queryParams{Query: query})
}

// CardsInfo returns detailed information for the given card IDs.
func (c *Client) CardsInfo(ctx context.Context, cards []int64) ([]CardInfo, error) {
	return invoke[[]CardInfo](ctx, c, "cardsInfo", cardsParams{Cards: cards})
}

// CardsToNotes returns the note IDs backing the given cards, unordered and
// deduplicated by the endpoint.
func (c *Client) CardsToNotes(ctx context.Context, cards []int64) ([]int64, error) {
	return invoke[[]int64](ctx, c, "cardsToNotes", cardsParams{Cards: cards})
}

// GetEaseFactors returns the ease factor of each given card. The values
// are owned and interpreted by Anki; this client only ferries them.
func (c *Client) GetEaseFactors(ctx context.Context, cards []int64) ([]int64, error) {
	return invoke[[]int64](ctx, c, "getEaseFactors", cardsParams{Cards: cards})
}

// SetEaseFactors sets the ease factor of each given card and reports
// per-card success.
func (c *Client) SetEaseFactors(ctx context.Context, cards, easeFactors []int64) ([]bool, error) {
	params := struct {
		Cards       []int64 `json:"cards"`
		EaseFactors []int64 `json:"easeFactors"`
	}{cards, easeFactors}
	return invoke[[]bool](ctx, c, "setEaseFactors", params)
}

// SuspendCards suspends the given cards.
func (c *Client) SuspendCards(ctx context.Context, cards []int64) (bool, error) {
	return invoke[bool](ctx, c, "suspend", cardsParams{Cards: cards})
}

// UnsuspendCards unsuspends the given cards.
func (c *Client) UnsuspendCards(ctx context.Context, cards []int64) (bool, error) {
	return invoke[bool](ctx, c, "unsuspend", cardsParams{Cards: cards})
}

// AreSuspended reports the suspended state of each given card; the entry
// is nil for cards that do not exist.
func (c *Client) AreSuspended(ctx context.Context, cards []int64) ([]*bool, error) {
	return invoke[[]*bool](ctx, c, "areSuspended", cardsParams{Cards: cards})
}

// AreDue reports whether each given card is due.
func (c *Client) AreDue(ctx context.Context, cards []int64) ([]bool, error) {
	return invoke[[]bool](ctx, c, "areDue", cardsParams{Cards: cards})
}

// GetIntervals returns review intervals for the given cards. The result
// shape depends on complete (per-card int, or per-card list of ints), so it
// is passed through undecoded.
func (c *Client) GetIntervals(ctx context.Context, cards []int64, complete bool) (json.RawMessage, error) {
	params := struct {
		Cards    []int64 `json:"cards"`
		Complete bool    `json:"complete,omitempty"`
	}{cards, complete}
	return c.Invoke(ctx, "getIntervals", params)
}

// ForgetCards resets the given cards to new.
func (c *Client) ForgetCards(ctx context.Context, cards []int64) error {
	return invokeVoid(ctx, c, "forgetCards", cardsParams{Cards: cards})
}

// SetDueDate reschedules the given cards. days uses Anki's due-date
// grammar ("0", "1!", "3-7"), forwarded verbatim.
func (c *Client) SetDueDate(ctx context.Context, cards []int64, days string) (bool, error) {
	params := struct {
		Cards []int64 `json:"cards"`
		Days  string  `json:"days"`
	}{cards, days}
	return invoke[bool](ctx, c, "setDueDate", params)
}

// --- Deck actions ---

// DeckNames returns every deck name in the collection.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	return invoke[[]string](ctx, c, "deckNames", nil)
}

// DeckNamesAndIDs returns deck names mapped to their IDs.
func (c *Client) DeckNamesAndIDs(ctx context.Context) (map[string]int64, error) {
	return invoke[map[string]int64](ctx, c, "deckNamesAndIds", nil)
}

// GetDecks maps deck names to the subset of the given card IDs they contain.
func (c *Client) GetDecks(ctx context.Context, cards []int64) (map[string][]int64, error) {
	return invoke[map[string][]int64](ctx, c, "getDecks", cardsParams{Cards: cards})
}

// CreateDeck creates an empty deck and returns its ID. Existing decks are
// left untouched.
func (c *Client) CreateDeck(ctx context.Context, deck string) (int64, error) {
	return invoke[int64](ctx, c, "createDeck", deckParams{Deck: deck})
}

// RenameDeck renames a deck. Endpoints without the action reject it with a
// remote action error, which is surfaced as-is.
func (c *Client) RenameDeck(ctx context.Context, deck, newName string) error {
	params := struct {
		Deck    string `json:"deck"`
		NewName string `json:"newName"`
	}{deck, newName}
	return invokeVoid(ctx, c, "renameDeck", params)
}

// DeleteDecks deletes the given decks and all their cards. cardsToo is
// always sent as true because AnkiConnect refuses anything else.
func (c *Client) DeleteDecks(ctx context.Context, decks []string) error {
	params := struct {
		Decks    []string `json:"decks"`
		CardsToo bool     `json:"cardsToo"`
	}{decks, true}
	return invokeVoid(ctx, c, "deleteDecks", params)
}

// ChangeDeck moves the given cards into deck, creating it if needed.
func (c *Client) ChangeDeck(ctx context.Context, cards []int64, deck string) error {
	params := struct {
		Cards []int64 `json:"cards"`
		Deck  string  `json:"deck"`
	}{cards, deck}
	return invokeVoid(ctx, c, "changeDeck", params)
}

// GetDeckStats returns per-deck counts for the given decks, keyed by deck ID.
func (c *Client) GetDeckStats(ctx context.Context, decks []string) (map[string]DeckStats, error) {
	return invoke[map[string]DeckStats](ctx, c, "getDeckStats", decksParams{Decks: decks})
}

// --- Note actions ---

// AddNote creates a note and returns its ID.
func (c *Client) AddNote(ctx context.Context, note Note) (int64, error) {
	params := struct {
		Note Note `json:"note"`
	}{note}
	return invoke[int64](ctx, c, "addNote", params)
}

// AddNotes creates several notes. The result has one entry per input note;
// nil marks a note the endpoint could not add.
func (c *Client) AddNotes(ctx context.Context, notes []Note) ([]*int64, error) {
	params := struct {
		Notes []Note `json:"notes"`
	}{notes}
	return invoke[[]*int64](ctx, c, "addNotes", params)
}

// CanAddNotes reports whether each candidate note could be added.
func (c *Client) CanAddNotes(ctx context.Context, notes []Note) ([]bool, error) {
	params := struct {
		Notes []Note `json:"notes"`
	}{notes}
	return invoke[[]bool](ctx, c, "canAddNotes", params)
}

// FindNotes returns the note IDs matching an Anki search query.
func (c *Client) FindNotes(ctx context.Context, query string) ([]int64, error) {
	return invoke[[]int64](ctx, c, "findNotes", queryParams{Query: query})
}

// NotesInfo returns detailed information for the given note IDs, or for
// the notes matching query when notes is empty. Callers pass exactly one
// of the two.
func (c *Client) NotesInfo(ctx context.Context, notes []int64, query string) ([]NoteInfo, error) {
	params := struct {
		Notes []int64 `json:"notes,omitempty"`
		Query string  `json:"query,omitempty"`
	}{notes, query}
	return invoke[[]NoteInfo](ctx, c, "notesInfo", params)
}

// UpdateNoteFields replaces fields of an existing note.
func (c *Client) UpdateNoteFields(ctx context.Context, note NoteFieldsUpdate) error {
	params := struct {
		Note NoteFieldsUpdate `json:"note"`
	}{note}
	return invokeVoid(ctx, c, "updateNoteFields", params)
}

// UpdateNote replaces fields and/or tags of an existing note.
func (c *Client) UpdateNote(ctx context.Context, note NoteUpdate) error {
	params := struct {
		Note NoteUpdate `json:"note"`
	}{note}
	return invokeVoid(ctx, c, "updateNote", params)
}

// DeleteNotes deletes the given notes and all cards generated from them.
func (c *Client) DeleteNotes(ctx context.Context, notes []int64) error {
	return invokeVoid(ctx, c, "deleteNotes", notesParams{Notes: notes})
}

// GetNoteTags returns the tags of a note.
func (c *Client) GetNoteTags(ctx context.Context, note int64) ([]string, error) {
	return invoke[[]string](ctx, c, "getNoteTags", noteIDParams{Note: note})
}

// UpdateNoteTags replaces a note's tags.
func (c *Client) UpdateNoteTags(ctx context.Context, note int64, tags []string) error {
	params := struct {
		Note int64    `json:"note"`
		Tags []string `json:"tags"`
	}{note, tags}
	return invokeVoid(ctx, c, "updateNoteTags", params)
}

// AddTags adds tags to the given notes. AnkiConnect wants the tags as one
// space-separated string.
func (c *Client) AddTags(ctx context.Context, notes []int64, tags []string) error {
	return invokeVoid(ctx, c, "addTags", tagsParams(notes, tags))
}

// RemoveTags removes tags from the given notes.
func (c *Client) RemoveTags(ctx context.Context, notes []int64, tags []string) error {
	return invokeVoid(ctx, c, "removeTags", tagsParams(notes, tags))
}

func tagsParams(notes []int64, tags []string) any {
	return struct {
		Notes []int64 `json:"notes"`
		Tags  string  `json:"tags"`
	}{notes, strings.Join(tags, " ")}
}

// GetTags returns every tag in the collection.
func (c *Client) GetTags(ctx context.Context) ([]string, error) {
	return invoke[[]string](ctx, c, "getTags", nil)
}

// RemoveEmptyNotes deletes all notes with no remaining cards.
func (c *Client) RemoveEmptyNotes(ctx context.Context) error {
	return invokeVoid(ctx, c, "removeEmptyNotes", nil)
}

// --- Model (note type) actions ---

// ModelNames returns every model name.
func (c *Client) ModelNames(ctx context.Context) ([]string, error) {
	return invoke[[]string](ctx, c, "modelNames", nil)
}

// ModelNamesAndIDs returns model names mapped to their IDs.
func (c *Client) ModelNamesAndIDs(ctx context.Context) (map[string]int64, error) {
	return invoke[map[string]int64](ctx, c, "modelNamesAndIds", nil)
}

// ModelFieldNames returns a model's field names in order.
func (c *Client) ModelFieldNames(ctx context.Context, modelName string) ([]string, error) {
	return invoke[[]string](ctx, c, "modelFieldNames", modelNameParams{ModelName: modelName})
}

// ModelTemplates returns the front/back content of each template of a
// model, keyed by template name.
func (c *Client) ModelTemplates(ctx context.Context, modelName string) (map[string]CardTemplateSides, error) {
	return invoke[map[string]CardTemplateSides](ctx, c, "modelTemplates", modelNameParams{ModelName: modelName})
}

// ModelStyling returns a model's CSS.
func (c *Client) ModelStyling(ctx context.Context, modelName string) (ModelStyling, error) {
	return invoke[ModelStyling](ctx, c, "modelStyling", modelNameParams{ModelName: modelName})
}

// CreateModel creates a new model and returns the model object Anki built,
// passed through undecoded since its shape is Anki's own.
func (c *Client) CreateModel(ctx context.Context, req CreateModelRequest) (json.RawMessage, error) {
	return c.Invoke(ctx, "createModel", req)
}

// UpdateModelTemplates replaces template content of an existing model.
// Templates not named in the map are left alone.
func (c *Client) UpdateModelTemplates(ctx context.Context, name string, templates map[string]CardTemplateSides) error {
	params := struct {
		Model struct {
			Name      string                       `json:"name"`
			Templates map[string]CardTemplateSides `json:"templates"`
		} `json:"model"`
	}{}
	params.Model.Name = name
	params.Model.Templates = templates
	return invokeVoid(ctx, c, "updateModelTemplates", params)
}

// UpdateModelStyling replaces the CSS of an existing model.
func (c *Client) UpdateModelStyling(ctx context.Context, name, css string) error {
	params := struct {
		Model struct {
			Name string `json:"name"`
			CSS  string `json:"css"`
		} `json:"model"`
	}{}
	params.Model.Name = name
	params.Model.CSS = css
	return invokeVoid(ctx, c, "updateModelStyling", params)
}

// ModelFieldAdd creates a field within a model at the given position.
func (c *Client) ModelFieldAdd(ctx context.Context, modelName, fieldName string, index int) error {
	params := struct {
		ModelName string `json:"modelName"`
		FieldName string `json:"fieldName"`
		Index     int    `json:"index"`
	}{modelName, fieldName, index}
	return invokeVoid(ctx, c, "modelFieldAdd", params)
}

// ModelFieldRemove deletes a field from a model.
func (c *Client) ModelFieldRemove(ctx context.Context, modelName, fieldName string) error {
	params := struct {
		ModelName string `json:"modelName"`
		FieldName string `json:"fieldName"`
	}{modelName, fieldName}
	return invokeVoid(ctx, c, "modelFieldRemove", params)
}

// ModelFieldRename renames a field within a model.
func (c *Client) ModelFieldRename(ctx context.Context, modelName, oldFieldName, newFieldName string) error {
	params := struct {
		ModelName    string `json:"modelName"`
		OldFieldName string `json:"oldFieldName"`
		NewFieldName string `json:"newFieldName"`
	}{modelName, oldFieldName, newFieldName}
	return invokeVoid(ctx, c, "modelFieldRename", params)
}

// ModelTemplateAdd adds a card template to an existing model.
func (c *Client) ModelTemplateAdd(ctx context.Context, modelName string, template CardTemplate) error {
	params := struct {
		ModelName string       `json:"modelName"`
		Template  CardTemplate `json:"template"`
	}{modelName, template}
	return invokeVoid(ctx, c, "modelTemplateAdd", params)
}

// ModelTemplateRemove removes a card template from an existing model.
func (c *Client) ModelTemplateRemove(ctx context.Context, modelName, templateName string) error {
	params := struct {
		ModelName    string `json:"modelName"`
		TemplateName string `json:"templateName"`
	}{modelName, templateName}
	return invokeVoid(ctx, c, "modelTemplateRemove", params)
}

// --- Miscellaneous actions ---

// Version returns the AnkiConnect API version of the endpoint.
func (c *Client) Version(ctx context.Context) (int, error) {
	return invoke[int](ctx, c, "version", nil)
}

// Sync synchronizes the local collection with AnkiWeb.
func (c *Client) Sync(ctx context.Context) error {
	return invokeVoid(ctx, c, "sync", nil)
}

// RequestPermission asks the endpoint for API access. It is the one action
// AnkiConnect accepts without a key.
func (c *Client) RequestPermission(ctx context.Context) (PermissionResult, error) {
	return invoke[PermissionResult](ctx, c, "requestPermission", nil)
}
