package zentrysync

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"
)

func testSince(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

// scriptedTransport returns canned responses in order and records every call.
type scriptedTransport struct {
	responses []string
	errs      []error
	calls     []scriptedCall
}

type scriptedCall struct {
	method string
	path   string
	params url.Values
	body   any
}

func (s *scriptedTransport) Request(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	i := len(s.calls)
	s.calls = append(s.calls, scriptedCall{method: method, path: path, params: params, body: body})
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, &TransientError{Err: context.Canceled}
	}
	return json.RawMessage(s.responses[i]), nil
}

func TestUnwrapItems(t *testing.T) {
	items, err := unwrapItems(json.RawMessage(`{"Contacts":[{"ContactID":"a"},{"ContactID":"b"}]}`), contactSpec)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want 2", len(items))
	}

	_, err = unwrapItems(json.RawMessage(`{"Status":"OK"}`), contactSpec)
	if !IsStructural(err) {
		t.Errorf("missing wrapper array: got %v, want StructuralError", err)
	}
	_, err = unwrapItems(json.RawMessage(`{"Contacts":{"ContactID":"a"}}`), contactSpec)
	if !IsStructural(err) {
		t.Errorf("wrapper is not an array: got %v, want StructuralError", err)
	}
}

func TestEscapeWhere(t *testing.T) {
	if got := escapeWhere(`Acme "North" Co\Ltd`); got != `Acme \"North\" Co\\Ltd` {
		t.Errorf("got %q", got)
	}
	if got := escapeWhere("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestPostPositionalBatchZipsByPosition(t *testing.T) {
	api := &scriptedTransport{responses: []string{
		`{"Contacts":[{"ContactID":"r1","UpdatedDateUTC":"/Date(1700000000000+0000)/"},{"ContactID":"r2"}]}`,
	}}
	payloads := []*RemotePayload{
		{LocalId: "10", Body: map[string]any{"Name": "Acme"}},
		{LocalId: "11", Body: map[string]any{"Name": "Bolt"}},
	}

	results, err := postPositionalBatch(context.Background(), api, contactSpec, payloads)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].LocalId != "10" || results[0].RemoteId != "r1" {
		t.Errorf("slot 0: got (%s, %s)", results[0].LocalId, results[0].RemoteId)
	}
	if results[0].RemoteUpdatedAt == nil {
		t.Error("slot 0: missing remote update timestamp")
	}
	if results[1].LocalId != "11" || results[1].RemoteId != "r2" {
		t.Errorf("slot 1: got (%s, %s)", results[1].LocalId, results[1].RemoteId)
	}

	// The submitted body wraps all entities under the collection key.
	body, ok := api.calls[0].body.(map[string]any)
	if !ok {
		t.Fatalf("body has type %T", api.calls[0].body)
	}
	if _, ok := body["Contacts"]; !ok {
		t.Error("request body missing Contacts wrapper")
	}
}

func TestPostPositionalBatchShortResponse(t *testing.T) {
	api := &scriptedTransport{responses: []string{
		`{"Contacts":[{"ContactID":"r1"}]}`,
	}}
	payloads := []*RemotePayload{
		{LocalId: "10", Body: map[string]any{}},
		{LocalId: "11", Body: map[string]any{}},
		{LocalId: "12", Body: map[string]any{}},
	}

	results, err := postPositionalBatch(context.Background(), api, contactSpec, payloads)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err != nil || results[0].RemoteId != "r1" {
		t.Errorf("slot 0 should succeed: %+v", results[0])
	}
	for i := 1; i < 3; i++ {
		if !IsStructural(results[i].Err) {
			t.Errorf("slot %d: got %v, want StructuralError for unmatched tail", i, results[i].Err)
		}
		if results[i].RemoteId != "" {
			t.Errorf("slot %d: tail slot must not carry a remote id", i)
		}
	}
}

func TestPostPositionalBatchMissingIdSlot(t *testing.T) {
	api := &scriptedTransport{responses: []string{
		`{"Contacts":[{"ContactID":"r1"},{"Name":"no id"},{"ContactID":"r3"}]}`,
	}}
	payloads := []*RemotePayload{
		{LocalId: "10", Body: map[string]any{}},
		{LocalId: "11", Body: map[string]any{}},
		{LocalId: "12", Body: map[string]any{}},
	}

	results, err := postPositionalBatch(context.Background(), api, contactSpec, payloads)
	if err != nil {
		t.Fatal(err)
	}
	if !IsStructural(results[1].Err) {
		t.Errorf("slot 1: got %v, want StructuralError", results[1].Err)
	}
	// Siblings around the bad slot still carry their ids.
	if results[0].RemoteId != "r1" || results[2].RemoteId != "r3" {
		t.Errorf("sibling slots: got (%s, %s)", results[0].RemoteId, results[2].RemoteId)
	}
}

func TestFetchRemotePageHasMore(t *testing.T) {
	full := `{"Items":[`
	for i := 0; i < 3; i++ {
		if i > 0 {
			full += ","
		}
		full += `{"ItemID":"i` + string(rune('a'+i)) + `"}`
	}
	full += `]}`
	api := &scriptedTransport{responses: []string{full}}

	remotes, hasMore, err := fetchRemotePage(context.Background(), api, itemSpec, "", testSince(t), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(remotes) != 3 || !hasMore {
		t.Errorf("full page: got (%d, %v), want (3, true)", len(remotes), hasMore)
	}

	api = &scriptedTransport{responses: []string{`{"Items":[{"ItemID":"ia"}]}`}}
	remotes, hasMore, err = fetchRemotePage(context.Background(), api, itemSpec, "", testSince(t), 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(remotes) != 1 || hasMore {
		t.Errorf("short page: got (%d, %v), want (1, false)", len(remotes), hasMore)
	}
	if got := api.calls[0].params.Get("pageSize"); got != "3" {
		t.Errorf("pageSize param = %q", got)
	}
}

func TestFindRemoteByKeyNoMatch(t *testing.T) {
	api := &scriptedTransport{responses: []string{`{"Items":[]}`}}
	remote, err := findRemoteByKey(context.Background(), api, itemSpec, `Code=="SKU-1"`)
	if err != nil {
		t.Fatal(err)
	}
	if remote != nil {
		t.Errorf("got %+v, want nil for empty match", remote)
	}
	if got := api.calls[0].params.Get("where"); got != `Code=="SKU-1"` {
		t.Errorf("where param = %q", got)
	}
}
