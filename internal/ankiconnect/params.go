package ankiconnect

// Wire-level request and response shapes. JSON tags follow the AnkiConnect
// field names exactly (deckName, modelName, cardsToo, ...); optional
// members are omitted from the request body entirely when unset, because
// AnkiConnect distinguishes "absent" from "zero" for several of them.

// Note is the payload for addNote/addNotes/canAddNotes. Fields maps field
// name to content; an omitted Tags leaves the note untagged.
type Note struct {
	DeckName  string            `json:"deckName"`
	ModelName string            `json:"modelName"`
	Fields    map[string]string `json:"fields"`
	Tags      []string          `json:"tags,omitempty"`
	Options   *NoteOptions      `json:"options,omitempty"`
	Audio     []MediaAsset      `json:"audio,omitempty"`
	Video     []MediaAsset      `json:"video,omitempty"`
	Picture   []MediaAsset      `json:"picture,omitempty"`
}

// NoteOptions controls duplicate handling when adding notes.
type NoteOptions struct {
	AllowDuplicate        bool                   `json:"allowDuplicate,omitempty"`
	DuplicateScope        string                 `json:"duplicateScope,omitempty"`
	DuplicateScopeOptions *DuplicateScopeOptions `json:"duplicateScopeOptions,omitempty"`
}

// DuplicateScopeOptions narrows where duplicate checking looks.
type DuplicateScopeOptions struct {
	DeckName       string `json:"deckName,omitempty"`
	CheckChildren  bool   `json:"checkChildren,omitempty"`
	CheckAllModels bool   `json:"checkAllModels,omitempty"`
}

// MediaAsset attaches a media file to a note. Exactly one of Data (base64),
// Path, or URL supplies the content; Fields names the note fields the file
// is embedded into.
type MediaAsset struct {
	Filename string   `json:"filename"`
	Data     string   `json:"data,omitempty"`
	Path     string   `json:"path,omitempty"`
	URL      string   `json:"url,omitempty"`
	SkipHash string   `json:"skipHash,omitempty"`
	Fields   []string `json:"fields,omitempty"`
}

// NoteFieldsUpdate is the payload for updateNoteFields.
type NoteFieldsUpdate struct {
	ID      int64             `json:"id"`
	Fields  map[string]string `json:"fields"`
	Audio   []MediaAsset      `json:"audio,omitempty"`
	Video   []MediaAsset      `json:"video,omitempty"`
	Picture []MediaAsset      `json:"picture,omitempty"`
}

// NoteUpdate is the payload for updateNote; at least one of Fields or Tags
// must be set, which the caller is expected to have validated.
type NoteUpdate struct {
	ID      int64             `json:"id"`
	Fields  map[string]string `json:"fields,omitempty"`
	Tags    []string          `json:"tags,omitempty"`
	Audio   []MediaAsset      `json:"audio,omitempty"`
	Video   []MediaAsset      `json:"video,omitempty"`
	Picture []MediaAsset      `json:"picture,omitempty"`
}

// CardTemplate describes one card template of a model. The capitalized tags
// are AnkiConnect's, not a style accident.
type CardTemplate struct {
	Name  string `json:"Name,omitempty"`
	Front string `json:"Front"`
	Back  string `json:"Back"`
}

// CardTemplateSides carries just the two generation rules of a template,
// used by updateModelTemplates.
type CardTemplateSides struct {
	Front string `json:"Front"`
	Back  string `json:"Back"`
}

// CreateModelRequest is the payload for createModel.
type CreateModelRequest struct {
	ModelName     string         `json:"modelName"`
	InOrderFields []string       `json:"inOrderFields"`
	CSS           string         `json:"css,omitempty"`
	IsCloze       bool           `json:"isCloze,omitempty"`
	CardTemplates []CardTemplate `json:"cardTemplates"`
}

// FieldValue is one field of a card or note as AnkiConnect reports it.
type FieldValue struct {
	Value string `json:"value"`
	Order int    `json:"order"`
}

// CardInfo is the cardsInfo result element. Extra fields the endpoint may
// add are ignored on decode.
type CardInfo struct {
	CardID     int64                 `json:"cardId"`
	Note       int64                 `json:"note"`
	DeckName   string                `json:"deckName"`
	ModelName  string                `json:"modelName"`
	Question   string                `json:"question"`
	Answer     string                `json:"answer"`
	Fields     map[string]FieldValue `json:"fields"`
	FieldOrder int                   `json:"fieldOrder"`
	Ord        int                   `json:"ord"`
	Type       int                   `json:"type"`
	Queue      int                   `json:"queue"`
	Due        int64                 `json:"due"`
	Interval   int64                 `json:"interval"`
	Factor     int64                 `json:"factor"`
	Reps       int                   `json:"reps"`
	Lapses     int                   `json:"lapses"`
	Left       int                   `json:"left"`
	Mod        int64                 `json:"mod"`
	CSS        string                `json:"css"`
}

// NoteInfo is the notesInfo result element.
type NoteInfo struct {
	NoteID    int64                 `json:"noteId"`
	ModelName string                `json:"modelName"`
	Tags      []string              `json:"tags"`
	Fields    map[string]FieldValue `json:"fields"`
	Mod       int64                 `json:"mod"`
	Cards     []int64               `json:"cards"`
}

// DeckStats is the per-deck getDeckStats result.
type DeckStats struct {
	DeckID      int64  `json:"deck_id"`
	Name        string `json:"name"`
	NewCount    int    `json:"new_count"`
	LearnCount  int    `json:"learn_count"`
	ReviewCount int    `json:"review_count"`
	TotalInDeck int    `json:"total_in_deck"`
}

// ModelStyling is the modelStyling result.
type ModelStyling struct {
	CSS string `json:"css"`
}

// PermissionResult is the requestPermission result.
type PermissionResult struct {
	Permission    string `json:"permission"`
	RequireAPIKey bool   `json:"requireApikey"`
	Version       int    `json:"version"`
}

// Unexported parameter bundles shared by several actions.

type cardsParams struct {
	Cards []int64 `json:"cards"`
}

type notesParams struct {
	Notes []int64 `json:"notes"`
}

type noteIDParams struct {
	Note int64 `json:"note"`
}

type queryParams struct {
	Query string `json:"query"`
}

type deckParams struct {
	Deck string `json:"deck"`
}

type decksParams struct {
	Decks []string `json:"decks"`
}

type modelNameParams struct {
	ModelName string `json:"modelName"`
}
