package ankiconnect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingServer records each request body and answers from a fixed queue
// of responses, repeating the last one when the queue runs out.
type capturingServer struct {
	bodies    []map[string]json.RawMessage
	responses []string
	calls     atomic.Int64
}

func (cs *capturingServer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(cs.calls.Add(1)) - 1
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		cs.bodies = append(cs.bodies, body)
		resp := cs.responses[min(n, len(cs.responses)-1)]
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, resp)
	}
}

func (cs *capturingServer) start(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(cs.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "", DefaultVersion, 5*time.Second, nil)
}

func (cs *capturingServer) params(t *testing.T, call int) map[string]any {
	t.Helper()
	require.Greater(t, len(cs.bodies), call)
	var params map[string]any
	require.NoError(t, json.Unmarshal(cs.bodies[call]["params"], &params))
	return params
}

func TestFindCardsOrderedPassthrough(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": [1502298033753, 1502298036657], "error": null}`}}
	c := cs.start(t)

	ids, err := c.FindCards(context.Background(), "tag:my-tag")
	require.NoError(t, err)

	// The endpoint's ordering is preserved exactly.
	assert.Equal(t, []int64{1502298033753, 1502298036657}, ids)
	assert.Equal(t, `"findCards"`, string(cs.bodies[0]["action"]))
	if diff := cmp.Diff(map[string]any{"query": "tag:my-tag"}, cs.params(t, 0)); diff != "" {
		t.Errorf("findCards params mismatch (-want +got):\n%s", diff)
	}
}

func TestAddNoteSerializesVerbatim(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": 1496198395707, "error": null}`}}
	c := cs.start(t)

	id, err := c.AddNote(context.Background(), Note{
		DeckName:  "MyDeck",
		ModelName: "Basic",
		Fields:    map[string]string{"Front": "Hello", "Back": "World"},
		Tags:      []string{"new-word"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1496198395707), id)

	want := map[string]any{
		"note": map[string]any{
			"deckName":  "MyDeck",
			"modelName": "Basic",
			"fields":    map[string]any{"Front": "Hello", "Back": "World"},
			"tags":      []any{"new-word"},
		},
	}
	if diff := cmp.Diff(want, cs.params(t, 0)); diff != "" {
		t.Errorf("addNote params mismatch (-want +got):\n%s", diff)
	}
}

func TestAddNoteOmitsEmptyOptionals(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": 1, "error": null}`}}
	c := cs.start(t)

	_, err := c.AddNote(context.Background(), Note{
		DeckName:  "Default",
		ModelName: "Basic",
		Fields:    map[string]string{"Front": "q", "Back": "a"},
	})
	require.NoError(t, err)

	note, ok := cs.params(t, 0)["note"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, note, "tags")
	assert.NotContains(t, note, "options")
	assert.NotContains(t, note, "audio")
}

func TestDeleteNotesTwiceSurfacesRemoteError(t *testing.T) {
	cs := &capturingServer{responses: []string{
		`{"result": null, "error": null}`,
		`{"result": null, "error": "note was not found: 1502298033753"}`,
	}}
	c := cs.start(t)

	require.NoError(t, c.DeleteNotes(context.Background(), []int64{1502298033753}))

	err := c.DeleteNotes(context.Background(), []int64{1502298033753})
	require.Error(t, err)
	assert.Equal(t, KindRemoteAction, KindOf(err))
	assert.Equal(t, "note was not found: 1502298033753", MessageOf(err))
	assert.Equal(t, int64(2), cs.calls.Load())
}

func TestSetEaseFactors(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": [true, true], "error": null}`}}
	c := cs.start(t)

	applied, err := c.SetEaseFactors(context.Background(), []int64{100, 200}, []int64{2500, 1300})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, applied)

	want := map[string]any{
		"cards":       []any{float64(100), float64(200)},
		"easeFactors": []any{float64(2500), float64(1300)},
	}
	if diff := cmp.Diff(want, cs.params(t, 0)); diff != "" {
		t.Errorf("setEaseFactors params mismatch (-want +got):\n%s", diff)
	}
}

func TestAddTagsJoinsTags(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": null, "error": null}`}}
	c := cs.start(t)

	require.NoError(t, c.AddTags(context.Background(), []int64{1, 2}, []string{"vocab", "new-word"}))

	// Tags travel as one space-separated string.
	assert.Equal(t, "vocab new-word", cs.params(t, 0)["tags"])
}

func TestDeleteDecksAlwaysSendsCardsToo(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": null, "error": null}`}}
	c := cs.start(t)

	require.NoError(t, c.DeleteDecks(context.Background(), []string{"Old"}))
	assert.Equal(t, true, cs.params(t, 0)["cardsToo"])
}

func TestAddNotesNullEntries(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": [1496198395707, null], "error": null}`}}
	c := cs.start(t)

	note := Note{DeckName: "Default", ModelName: "Basic", Fields: map[string]string{"Front": "q", "Back": "a"}}
	ids, err := c.AddNotes(context.Background(), []Note{note, note})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotNil(t, ids[0])
	assert.Equal(t, int64(1496198395707), *ids[0])
	assert.Nil(t, ids[1])
}

func TestAreSuspendedNullEntries(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": [false, null, true], "error": null}`}}
	c := cs.start(t)

	states, err := c.AreSuspended(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, states, 3)
	assert.False(t, *states[0])
	assert.Nil(t, states[1])
	assert.True(t, *states[2])
}

func TestInvokeResultShapeMismatch(t *testing.T) {
	cs := &capturingServer{responses: []string{`{"result": "not-a-list", "error": null}`}}
	c := cs.start(t)

	_, err := c.FindCards(context.Background(), "deck:Default")
	require.Error(t, err)
	assert.Equal(t, KindProtocol, KindOf(err))
}

// Remote error messages reach the caller byte for byte, whatever Anki says.
func TestRemoteErrorMessageVerbatim(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("remote message passes through verbatim", prop.ForAll(
		func(msg string) bool {
			payload, err := json.Marshal(map[string]any{"result": nil, "error": msg})
			if err != nil {
				return false
			}
			cs := &capturingServer{responses: []string{string(payload)}}
			srv := httptest.NewServer(cs.handler(t))
			defer srv.Close()
			c := NewClient(srv.URL, "", DefaultVersion, 5*time.Second, nil)

			_, err = c.Invoke(context.Background(), "sync", nil)
			return KindOf(err) == KindRemoteAction && MessageOf(err) == msg
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
