package rpc_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/momentics/hioload-bridge/rpc"
)

func decode(t *testing.T, raw []byte) rpc.Response {
	t.Helper()
	var resp rpc.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("response is not valid JSON: %q: %v", raw, err)
	}
	return resp
}

func TestProcessErrorCodes(t *testing.T) {
	d := rpc.NewDispatcher()
	d.Register("x.y", func(json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`true`), nil
	})

	cases := []struct {
		name    string
		in      string
		id      string
		code    int
		message string
	}{
		{"missing id", `{"method":"x.y","params":{}}`, "unknown", -1, "Missing 'id' field in request"},
		{"empty id", `{"id":"","method":"x.y"}`, "unknown", -1, "Missing 'id' field in request"},
		{"missing method", `{"id":"7","params":{}}`, "7", -1, "Missing 'method' field in request"},
		{"unknown method", `{"id":"1","method":"nope"}`, "1", -2, "Unknown method: nope"},
	}
	for _, c := range cases {
		resp := decode(t, d.Process([]byte(c.in)))
		if resp.Error == nil {
			t.Errorf("%s: expected error, got result %s", c.name, resp.Result)
			continue
		}
		if resp.ID != c.id || resp.Error.Code != c.code || resp.Error.Message != c.message {
			t.Errorf("%s: got id=%q code=%d msg=%q", c.name, resp.ID, resp.Error.Code, resp.Error.Message)
		}
	}
}

func TestProcessInvalidJSON(t *testing.T) {
	d := rpc.NewDispatcher()
	resp := decode(t, d.Process([]byte(`{"id":`)))
	if resp.ID != rpc.UnknownID || resp.Error == nil || resp.Error.Code != rpc.CodeMalformedRequest {
		t.Fatalf("got %+v", resp)
	}
}

func TestProcessEmbedsResultVerbatim(t *testing.T) {
	d := rpc.NewDispatcher()
	var gotParams string
	d.Register("shader/list", func(p json.RawMessage) (json.RawMessage, error) {
		gotParams = string(p)
		return json.RawMessage(`{"shaders":["Lit","Unlit"],"count":2}`), nil
	})

	out := d.Process([]byte(`{"id":"abc","method":"shader/list","params":{"filter":"Lit"}}`))
	want := `{"id":"abc","result":{"shaders":["Lit","Unlit"],"count":2}}`
	if string(out) != want {
		t.Errorf("Process = %s, want %s", out, want)
	}
	if gotParams != `{"filter":"Lit"}` {
		t.Errorf("params = %s", gotParams)
	}
}

func TestProcessDefaultsParamsToEmptyObject(t *testing.T) {
	d := rpc.NewDispatcher()
	var gotParams string
	d.Register("pipeline/info", func(p json.RawMessage) (json.RawMessage, error) {
		gotParams = string(p)
		return nil, nil
	})
	out := d.Process([]byte(`{"id":"2","method":"pipeline/info"}`))
	if gotParams != "{}" {
		t.Errorf("params = %q, want {}", gotParams)
	}
	if string(out) != `{"id":"2","result":null}` {
		t.Errorf("empty handler output: %s", out)
	}
}

func TestHandlerFailureKeepsDispatcherUsable(t *testing.T) {
	d := rpc.NewDispatcher()
	d.Register("boom", func(json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("shader not found: Assets/x.shader")
	})
	d.Register("panic", func(json.RawMessage) (json.RawMessage, error) {
		panic("index out of range")
	})
	d.Register("custom", func(json.RawMessage) (json.RawMessage, error) {
		return nil, rpc.NewError(rpc.CodeRemoteUnavailable, "language server unavailable")
	})
	d.Register("ok", func(json.RawMessage) (json.RawMessage, error) {
		return json.RawMessage(`"fine"`), nil
	})

	resp := decode(t, d.Process([]byte(`{"id":"1","method":"boom"}`)))
	if resp.Error == nil || resp.Error.Code != -3 || resp.Error.Message != "shader not found: Assets/x.shader" {
		t.Errorf("boom: %+v", resp.Error)
	}
	resp = decode(t, d.Process([]byte(`{"id":"2","method":"panic"}`)))
	if resp.Error == nil || resp.Error.Code != -3 {
		t.Errorf("panic: %+v", resp.Error)
	}
	resp = decode(t, d.Process([]byte(`{"id":"3","method":"custom"}`)))
	if resp.Error == nil || resp.Error.Code != rpc.CodeRemoteUnavailable {
		t.Errorf("custom: %+v", resp.Error)
	}
	resp = decode(t, d.Process([]byte(`{"id":"4","method":"ok"}`)))
	if resp.Error != nil || string(resp.Result) != `"fine"` {
		t.Errorf("ok after failures: %+v", resp)
	}

	stats := d.Stats()
	if stats.Processed != 4 || stats.HandlerFailure != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestNumericIDIsEchoedLiterally(t *testing.T) {
	d := rpc.NewDispatcher()
	resp := decode(t, d.Process([]byte(`{"id":42,"method":"missing"}`)))
	if resp.ID != "42" || resp.Error.Code != rpc.CodeUnknownMethod {
		t.Errorf("got %+v", resp)
	}
}

type echoHandler struct{}

func (echoHandler) Handle(method string, params json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(map[string]any{"method": method, "params": params})
}

func TestRegisterHandlerAndMethods(t *testing.T) {
	d := rpc.NewDispatcher()
	d.RegisterHandler(echoHandler{}, "material/info", "material/list")
	if got := d.Methods(); !reflect.DeepEqual(got, []string{"material/info", "material/list"}) {
		t.Errorf("Methods = %v", got)
	}
	resp := decode(t, d.Process([]byte(`{"id":"9","method":"material/info","params":{"materialPath":"m"}}`)))
	var body struct {
		Method string
		Params map[string]string
	}
	if err := json.Unmarshal(resp.Result, &body); err != nil {
		t.Fatal(err)
	}
	if body.Method != "material/info" || body.Params["materialPath"] != "m" {
		t.Errorf("body = %+v", body)
	}
}

func TestEncodeRequest(t *testing.T) {
	raw, err := rpc.EncodeRequest("id-1", "shader/compile", map[string]string{"shaderPath": "Assets/x.shader"})
	if err != nil {
		t.Fatal(err)
	}
	var req rpc.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatal(err)
	}
	if req.ID != "id-1" || req.Method != "shader/compile" || string(req.Params) != `{"shaderPath":"Assets/x.shader"}` {
		t.Errorf("req = %+v params=%s", req, req.Params)
	}

	raw, _ = rpc.EncodeRequest("id-2", "pipeline/info", nil)
	json.Unmarshal(raw, &req)
	if string(req.Params) != "{}" {
		t.Errorf("nil params encoded as %s", req.Params)
	}
}
