package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CIVITAS-John/vox-deorum-sub001/internal/tool"
)

func echoCatalog(t *testing.T) *tool.Catalog {
	cat := tool.NewCatalog()
	tl, err := tool.NewInformationalTool("echo", "echoes input", nil, func(ctx context.Context, args json.RawMessage) (any, error) {
		return map[string]any{"echoed": string(args)}, nil
	})
	require.NoError(t, err)
	cat.Register(tl)
	return cat
}

func TestHandle_ListTools(t *testing.T) {
	s := New(echoCatalog(t), nil, nil)
	resp := s.Handle(context.Background(), request{JSONRPC: "2.0", ID: 1, Method: "list_tools"}, nil)
	require.Nil(t, resp.Error)
	assert.NotNil(t, resp.Result)
}

func TestHandle_CallToolDispatchesAndNotifies(t *testing.T) {
	s := New(echoCatalog(t), nil, nil)

	var notifications []notification
	resp := s.Handle(context.Background(), request{
		JSONRPC: "2.0", ID: 2, Method: "call_tool",
		Params: json.RawMessage(`{"name":"echo","arguments":{"a":1}}`),
	}, func(n notification) { notifications = append(notifications, n) })

	require.Nil(t, resp.Error)
	require.Len(t, notifications, 2)
	assert.Equal(t, "started", notifications[0].Params.(map[string]any)["status"])
	assert.Equal(t, "completed", notifications[1].Params.(map[string]any)["status"])
}

func TestHandle_CallToolUnknownNameIsInvalidParams(t *testing.T) {
	s := New(echoCatalog(t), nil, nil)
	resp := s.Handle(context.Background(), request{
		JSONRPC: "2.0", ID: 3, Method: "call_tool",
		Params: json.RawMessage(`{"name":"missing"}`),
	}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestHandle_UnknownMethod(t *testing.T) {
	s := New(echoCatalog(t), nil, nil)
	resp := s.Handle(context.Background(), request{JSONRPC: "2.0", ID: 4, Method: "bogus"}, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestServeStdio_ProcessesOneRequestPerLine(t *testing.T) {
	s := New(echoCatalog(t), nil, nil)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"list_tools"}` + "\n")
	var out bytes.Buffer

	err := s.ServeStdio(context.Background(), in, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"result"`)
}
