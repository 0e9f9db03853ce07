// Package main implements the AnkiConnect MCP proxy server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mcp-anki/mcp-anki/internal/ankiconnect"
	"github.com/mcp-anki/mcp-anki/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ankiServerInfo = `
This server exposes a running Anki desktop instance through the AnkiConnect
add-on. Every tool is a thin proxy: it forwards one AnkiConnect action and
returns Anki's result unchanged.

Usage notes:
1. Anki must be running with the AnkiConnect add-on installed, otherwise
   every tool fails with a connectivity error.
2. Deck, note and card identifiers come from Anki itself; use the find and
   list tools to discover them before mutating anything.
3. Search tools (anki_find_cards, anki_find_notes) accept Anki's own search
   syntax, e.g. "deck:Spanish tag:verb is:due". See the
   search_syntax_guidance prompt for a reference.
4. Destructive tools (anki_delete_notes, anki_delete_decks) are immediate
   and irreversible; confirm with the user before calling them.
5. Field values are HTML. Use <br> for line breaks inside a field.
`

const addNoteGuidanceText = `When creating Anki notes, follow these conventions:

1. Check the available note types first with anki_model_names, and the
   field names of the chosen type with anki_model_field_names. The default
   "Basic" type has fields "Front" and "Back".
2. Check existing decks with anki_deck_names; create missing ones with
   anki_create_deck before adding notes to them.
3. Keep the front of a card a single, specific question. Put everything
   else on the back.
4. Field values are HTML: escape literal < and &, and use <br> for line
   breaks.
5. Tags may not contain spaces; use hyphens instead (e.g. "new-word").
6. If Anki rejects the note as a duplicate, either revise the front field
   or set allow_duplicate to true when the duplicate is intentional.`

const searchSyntaxGuidanceText = `Anki search syntax, as accepted by anki_find_cards and anki_find_notes:

- deck:DeckName       cards in a deck ("deck:Spanish::Verbs" for subdecks)
- tag:my-tag          notes carrying a tag
- is:due              cards due for review
- is:new              cards never studied
- is:suspended        suspended cards
- note:Basic          notes of a given note type
- front:word          exact match on a field named Front
- "multi word"        quote terms containing spaces
- -tag:old            negate any term with a leading minus
- added:7             notes added in the last 7 days

Terms combine with implicit AND; use "or" explicitly for alternatives,
e.g. deck:Spanish (tag:verb or tag:noun).`

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	// Stdout carries the MCP stdio transport; everything we log goes to
	// stderr.
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())
	zapConfig.OutputPaths = []string{"stderr"}
	zapConfig.ErrorOutputPaths = []string{"stderr"}
	return zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	client := ankiconnect.NewClient(cfg.Endpoint, cfg.APIKey, cfg.Version, cfg.Timeout(), logger)
	svc := NewAnkiService(client, logger)

	logger.Info("starting AnkiConnect MCP proxy",
		zap.String("endpoint", cfg.Endpoint),
		zap.Int("api_version", cfg.Version),
		zap.Duration("timeout", cfg.Timeout()))

	s := server.NewMCPServer(
		"Anki MCP",
		"1.0.0",
		server.WithInstructions(ankiServerInfo),
		server.WithResourceCapabilities(true, true),
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	// addTool injects the service into the request context so handlers see
	// both the service and the per-request cancellation.
	type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	addTool := func(tool mcp.Tool, handler toolHandler) {
		s.AddTool(tool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handler(context.WithValue(reqCtx, "service", svc), request)
		})
	}

	// Card tools.

	addTool(mcp.NewTool("anki_find_cards",
		mcp.WithDescription("Find card IDs matching an Anki search query. "+
			"Returns the IDs in the order Anki produced them. "+
			"See the search_syntax_guidance prompt for the query language."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Anki search query, e.g. \"deck:Spanish is:due\""),
		),
	), handleFindCards)

	addTool(mcp.NewTool("anki_cards_info",
		mcp.WithDescription("Get detailed information (fields, deck, due state, ease, intervals) for the given cards."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to look up"),
		),
	), handleCardsInfo)

	addTool(mcp.NewTool("anki_cards_to_notes",
		mcp.WithDescription("Translate card IDs into the IDs of the notes they belong to. Duplicates are collapsed."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to translate"),
		),
	), handleCardsToNotes)

	addTool(mcp.NewTool("anki_get_ease_factors",
		mcp.WithDescription("Get the ease factor of each given card (per mille, e.g. 2500 = 250%)."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to inspect"),
		),
	), handleGetEaseFactors)

	addTool(mcp.NewTool("anki_set_ease_factors",
		mcp.WithDescription("Set the ease factor of each given card. card_ids and ease_factors pair up by position."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to modify"),
		),
		mcp.WithArray("ease_factors",
			mcp.Required(),
			mcp.Description("New ease factors, one per card (per mille)"),
		),
	), handleSetEaseFactors)

	addTool(mcp.NewTool("anki_suspend_cards",
		mcp.WithDescription("Suspend the given cards so they stop appearing in reviews."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to suspend"),
		),
	), handleSuspendCards)

	addTool(mcp.NewTool("anki_unsuspend_cards",
		mcp.WithDescription("Unsuspend the given cards."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to unsuspend"),
		),
	), handleUnsuspendCards)

	addTool(mcp.NewTool("anki_are_suspended",
		mcp.WithDescription("Check the suspension state of each given card. Returns null for IDs that do not exist."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to check"),
		),
	), handleAreSuspended)

	addTool(mcp.NewTool("anki_are_due",
		mcp.WithDescription("Check whether each given card is due for review."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to check"),
		),
	), handleAreDue)

	addTool(mcp.NewTool("anki_get_intervals",
		mcp.WithDescription("Get review intervals for the given cards. "+
			"By default returns the most recent interval per card; with complete=true returns the full interval history per card. "+
			"Negative values are seconds, positive values days."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to inspect"),
		),
		mcp.WithBoolean("complete",
			mcp.Description("Return the complete interval history per card"),
		),
	), handleGetIntervals)

	addTool(mcp.NewTool("anki_forget_cards",
		mcp.WithDescription("Reset the given cards to new, discarding their review history position."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to reset"),
		),
	), handleForgetCards)

	addTool(mcp.NewTool("anki_set_due_date",
		mcp.WithDescription("Set the due date of the given cards. "+
			"days accepts Anki's reschedule syntax: \"0\" = today, \"1!\" = tomorrow with interval reset, \"3-7\" = random range."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to reschedule"),
		),
		mcp.WithString("days",
			mcp.Required(),
			mcp.Description("Due date specifier, e.g. \"0\", \"1!\" or \"3-7\""),
		),
	), handleSetDueDate)

	// Deck tools.

	addTool(mcp.NewTool("anki_deck_names",
		mcp.WithDescription("List the names of all decks in the collection."),
	), handleDeckNames)

	addTool(mcp.NewTool("anki_deck_names_and_ids",
		mcp.WithDescription("List all decks as a map from deck name to deck ID."),
	), handleDeckNamesAndIDs)

	addTool(mcp.NewTool("anki_get_decks",
		mcp.WithDescription("Group the given card IDs by the deck they belong to."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to group"),
		),
	), handleGetDecks)

	addTool(mcp.NewTool("anki_create_deck",
		mcp.WithDescription("Create a deck. Use \"Parent::Child\" for nested decks; creating an existing deck is a no-op."),
		mcp.WithString("deck",
			mcp.Required(),
			mcp.Description("Deck name to create"),
		),
	), handleCreateDeck)

	addTool(mcp.NewTool("anki_rename_deck",
		mcp.WithDescription("Rename a deck, keeping its cards and settings."),
		mcp.WithString("deck",
			mcp.Required(),
			mcp.Description("Current deck name"),
		),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("New deck name"),
		),
	), handleRenameDeck)

	addTool(mcp.NewTool("anki_delete_decks",
		mcp.WithDescription("Delete the given decks AND every card in them. "+
			"Irreversible; cards_too must be explicitly true to confirm."),
		mcp.WithArray("decks",
			mcp.Required(),
			mcp.Description("Deck names to delete"),
		),
		mcp.WithBoolean("cards_too",
			mcp.Required(),
			mcp.Description("Must be true; confirms deleting the decks' cards"),
		),
	), handleDeleteDecks)

	addTool(mcp.NewTool("anki_change_deck",
		mcp.WithDescription("Move the given cards into another deck, creating it if needed."),
		mcp.WithArray("card_ids",
			mcp.Required(),
			mcp.Description("Card IDs to move"),
		),
		mcp.WithString("deck",
			mcp.Required(),
			mcp.Description("Destination deck name"),
		),
	), handleChangeDeck)

	addTool(mcp.NewTool("anki_get_deck_stats",
		mcp.WithDescription("Get per-deck statistics (new, learning and review counts, total cards) for the given decks."),
		mcp.WithArray("decks",
			mcp.Required(),
			mcp.Description("Deck names to inspect"),
		),
	), handleGetDeckStats)

	// Note tools.

	addTool(mcp.NewTool("anki_add_note",
		mcp.WithDescription("Create a note in a deck. "+
			"Check field names with anki_model_field_names first; the default \"Basic\" type has fields \"Front\" and \"Back\". "+
			"Field values are HTML. Returns the new note's ID."),
		mcp.WithString("deck_name",
			mcp.Required(),
			mcp.Description("Deck to add the note to"),
		),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type, e.g. \"Basic\""),
		),
		mcp.WithObject("fields",
			mcp.Required(),
			mcp.Description("Field values keyed by field name, e.g. {\"Front\": \"...\", \"Back\": \"...\"}"),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags for the note; no spaces within a tag"),
		),
		mcp.WithBoolean("allow_duplicate",
			mcp.Description("Allow creating the note even if Anki considers it a duplicate"),
		),
	), handleAddNote)

	addTool(mcp.NewTool("anki_add_notes",
		mcp.WithDescription("Create several notes in one call. "+
			"Each note object takes the same parameters as anki_add_note. "+
			"Returns one note ID per input, null where Anki refused the note."),
		mcp.WithArray("notes",
			mcp.Required(),
			mcp.Description("Notes to create, each with deck_name, model_name, fields and optional tags"),
		),
	), handleAddNotes)

	addTool(mcp.NewTool("anki_can_add_notes",
		mcp.WithDescription("Check, without creating anything, whether each given note could be added (e.g. duplicate detection)."),
		mcp.WithArray("notes",
			mcp.Required(),
			mcp.Description("Candidate notes, same shape as anki_add_notes"),
		),
	), handleCanAddNotes)

	addTool(mcp.NewTool("anki_find_notes",
		mcp.WithDescription("Find note IDs matching an Anki search query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Anki search query, e.g. \"tag:vocab\""),
		),
	), handleFindNotes)

	addTool(mcp.NewTool("anki_notes_info",
		mcp.WithDescription("Get detailed information (fields, tags, cards) for notes. "+
			"Provide exactly one of note_ids or query."),
		mcp.WithArray("note_ids",
			mcp.Description("Note IDs to look up"),
		),
		mcp.WithString("query",
			mcp.Description("Anki search query selecting the notes"),
		),
	), handleNotesInfo)

	addTool(mcp.NewTool("anki_update_note_fields",
		mcp.WithDescription("Overwrite fields of an existing note. Only the listed fields change."),
		mcp.WithNumber("note_id",
			mcp.Required(),
			mcp.Description("Note ID to update"),
		),
		mcp.WithObject("fields",
			mcp.Required(),
			mcp.Description("New field values keyed by field name"),
		),
	), handleUpdateNoteFields)

	addTool(mcp.NewTool("anki_update_note",
		mcp.WithDescription("Update fields and/or tags of a note in one call. "+
			"Provide at least one of fields or tags; tags, when given, replace the note's tags entirely."),
		mcp.WithNumber("note_id",
			mcp.Required(),
			mcp.Description("Note ID to update"),
		),
		mcp.WithObject("fields",
			mcp.Description("New field values keyed by field name"),
		),
		mcp.WithArray("tags",
			mcp.Description("Replacement tag list"),
		),
	), handleUpdateNote)

	addTool(mcp.NewTool("anki_delete_notes",
		mcp.WithDescription("Delete the given notes and all their cards. Irreversible; confirm with the user first."),
		mcp.WithArray("note_ids",
			mcp.Required(),
			mcp.Description("Note IDs to delete"),
		),
	), handleDeleteNotes)

	addTool(mcp.NewTool("anki_get_note_tags",
		mcp.WithDescription("Get the tags of a single note."),
		mcp.WithNumber("note_id",
			mcp.Required(),
			mcp.Description("Note ID to inspect"),
		),
	), handleGetNoteTags)

	addTool(mcp.NewTool("anki_update_note_tags",
		mcp.WithDescription("Replace the tags of a note with the given list."),
		mcp.WithNumber("note_id",
			mcp.Required(),
			mcp.Description("Note ID to update"),
		),
		mcp.WithArray("tags",
			mcp.Required(),
			mcp.Description("Replacement tag list"),
		),
	), handleUpdateNoteTags)

	addTool(mcp.NewTool("anki_add_tags",
		mcp.WithDescription("Add tags to the given notes, keeping their existing tags."),
		mcp.WithArray("note_ids",
			mcp.Required(),
			mcp.Description("Note IDs to tag"),
		),
		mcp.WithArray("tags",
			mcp.Required(),
			mcp.Description("Tags to add"),
		),
	), handleAddTags)

	addTool(mcp.NewTool("anki_remove_tags",
		mcp.WithDescription("Remove tags from the given notes."),
		mcp.WithArray("note_ids",
			mcp.Required(),
			mcp.Description("Note IDs to untag"),
		),
		mcp.WithArray("tags",
			mcp.Required(),
			mcp.Description("Tags to remove"),
		),
	), handleRemoveTags)

	addTool(mcp.NewTool("anki_get_tags",
		mcp.WithDescription("List every tag in the collection."),
	), handleGetTags)

	addTool(mcp.NewTool("anki_remove_empty_notes",
		mcp.WithDescription("Delete all notes whose fields are entirely empty."),
	), handleRemoveEmptyNotes)

	// Model (note type) tools.

	addTool(mcp.NewTool("anki_model_names",
		mcp.WithDescription("List the names of all note types."),
	), handleModelNames)

	addTool(mcp.NewTool("anki_model_names_and_ids",
		mcp.WithDescription("List all note types as a map from name to ID."),
	), handleModelNamesAndIDs)

	addTool(mcp.NewTool("anki_model_field_names",
		mcp.WithDescription("List the field names of a note type, in order."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name, e.g. \"Basic\""),
		),
	), handleModelFieldNames)

	addTool(mcp.NewTool("anki_model_templates",
		mcp.WithDescription("Get the card templates of a note type as a map from template name to its Front and Back formats."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
	), handleModelTemplates)

	addTool(mcp.NewTool("anki_model_styling",
		mcp.WithDescription("Get the shared CSS of a note type."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
	), handleModelStyling)

	addTool(mcp.NewTool("anki_create_model",
		mcp.WithDescription("Create a note type with the given fields and card templates. "+
			"Each template object has front and back format strings (and an optional name); "+
			"formats reference fields as {{FieldName}}."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Name of the new note type"),
		),
		mcp.WithArray("in_order_fields",
			mcp.Required(),
			mcp.Description("Field names, in display order"),
		),
		mcp.WithArray("card_templates",
			mcp.Required(),
			mcp.Description("Card templates, each {name?, front, back}"),
		),
		mcp.WithString("css",
			mcp.Description("Shared CSS for the note type"),
		),
		mcp.WithBoolean("is_cloze",
			mcp.Description("Create a cloze note type"),
		),
	), handleCreateModel)

	addTool(mcp.NewTool("anki_update_model_templates",
		mcp.WithDescription("Replace the front/back formats of existing card templates of a note type. "+
			"templates maps template name to {front, back}; unlisted templates keep their formats."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
		mcp.WithObject("templates",
			mcp.Required(),
			mcp.Description("Template formats keyed by template name, each {front, back}"),
		),
	), handleUpdateModelTemplates)

	addTool(mcp.NewTool("anki_update_model_styling",
		mcp.WithDescription("Replace the shared CSS of a note type."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
		mcp.WithString("css",
			mcp.Required(),
			mcp.Description("New CSS"),
		),
	), handleUpdateModelStyling)

	addTool(mcp.NewTool("anki_model_field_add",
		mcp.WithDescription("Add a field to a note type at the given position (0-based; defaults to 0)."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
		mcp.WithString("field_name",
			mcp.Required(),
			mcp.Description("Name of the new field"),
		),
		mcp.WithNumber("index",
			mcp.Description("0-based position of the new field"),
		),
	), handleModelFieldAdd)

	addTool(mcp.NewTool("anki_model_field_remove",
		mcp.WithDescription("Remove a field from a note type, discarding its content on every note."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
		mcp.WithString("field_name",
			mcp.Required(),
			mcp.Description("Field to remove"),
		),
	), handleModelFieldRemove)

	addTool(mcp.NewTool("anki_model_field_rename",
		mcp.WithDescription("Rename a field of a note type. Card templates referencing the old name must be updated separately."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
		mcp.WithString("old_field_name",
			mcp.Required(),
			mcp.Description("Current field name"),
		),
		mcp.WithString("new_field_name",
			mcp.Required(),
			mcp.Description("New field name"),
		),
	), handleModelFieldRename)

	addTool(mcp.NewTool("anki_model_template_add",
		mcp.WithDescription("Add a card template to a note type, creating a new card per existing note."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
		mcp.WithObject("template",
			mcp.Required(),
			mcp.Description("The template to add: {name?, front, back}"),
		),
	), handleModelTemplateAdd)

	addTool(mcp.NewTool("anki_model_template_remove",
		mcp.WithDescription("Remove a card template from a note type, deleting its cards."),
		mcp.WithString("model_name",
			mcp.Required(),
			mcp.Description("Note type name"),
		),
		mcp.WithString("template_name",
			mcp.Required(),
			mcp.Description("Template to remove"),
		),
	), handleModelTemplateRemove)

	// Miscellaneous tools.

	addTool(mcp.NewTool("anki_version",
		mcp.WithDescription("Get the AnkiConnect API version of the running Anki instance. Useful as a connectivity check."),
	), handleVersion)

	addTool(mcp.NewTool("anki_sync",
		mcp.WithDescription("Trigger a synchronization of the local collection with AnkiWeb."),
	), handleSync)

	addTool(mcp.NewTool("anki_request_permission",
		mcp.WithDescription("Ask AnkiConnect for permission to use the API. Reports whether an API key is required."),
	), handleRequestPermission)

	// Prompts.

	s.AddPrompt(mcp.NewPrompt("add_note_guidance",
		mcp.WithPromptDescription("Conventions for creating well-formed Anki notes"),
	), func(promptCtx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Guidance for creating Anki notes",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(addNoteGuidanceText)),
			},
		), nil
	})

	s.AddPrompt(mcp.NewPrompt("search_syntax_guidance",
		mcp.WithPromptDescription("Reference for Anki's search query syntax"),
	), func(promptCtx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return mcp.NewGetPromptResult(
			"Anki search syntax reference",
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(searchSyntaxGuidanceText)),
			},
		), nil
	})

	// Resources.

	s.AddResource(mcp.NewResource(
		"anki://decks",
		"Anki decks",
		mcp.WithResourceDescription("The names of all decks in the collection"),
		mcp.WithMIMEType("application/json"),
	), func(reqCtx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleDecksResource(context.WithValue(reqCtx, "service", svc), request)
	})

	s.AddResource(mcp.NewResource(
		"anki://tags",
		"Anki tags",
		mcp.WithResourceDescription("Every tag in the collection"),
		mcp.WithMIMEType("application/json"),
	), func(reqCtx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleTagsResource(context.WithValue(reqCtx, "service", svc), request)
	})

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Error serving MCP server: %v", err)
	}
}
