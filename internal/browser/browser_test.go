package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kernel/askai/internal/delivery"
	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakePlaywrightService struct {
	ExecuteFunc func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error)

	Scripts []string
}

func (f *FakePlaywrightService) Execute(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error) {
	f.Scripts = append(f.Scripts, body.Code)
	if f.ExecuteFunc != nil {
		return f.ExecuteFunc(ctx, id, body, opts...)
	}
	return &kernel.BrowserPlaywrightExecuteResponse{Success: true}, nil
}

func returning(result any) func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error) {
	return func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error) {
		return &kernel.BrowserPlaywrightExecuteResponse{Success: true, Result: result}, nil
	}
}

func newTestKernel(svc PlaywrightService) *Kernel {
	k := NewKernel(svc, "session-1")
	k.newID = func() string { return "tab-fixed" }
	return k
}

func TestKernelCreate(t *testing.T) {
	var sessionID string
	fake := &FakePlaywrightService{
		ExecuteFunc: func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error) {
			sessionID = id
			return &kernel.BrowserPlaywrightExecuteResponse{
				Success: true,
				Result:  map[string]any{"id": "tab-fixed", "url": "https://claude.ai/new", "status": "loading"},
			}, nil
		},
	}
	k := newTestKernel(fake)

	tab, err := k.Create(context.Background(), "https://claude.ai/new")
	require.NoError(t, err)

	assert.Equal(t, "session-1", sessionID)
	assert.Equal(t, delivery.Tab{ID: "tab-fixed", URL: "https://claude.ai/new", Status: delivery.TabLoading}, tab)
	require.Len(t, fake.Scripts, 1)
	script := fake.Scripts[0]
	assert.Contains(t, script, `process.env.ASKAI_TAB_ID = "tab-fixed";`)
	assert.Contains(t, script, `process.env.ASKAI_URL = "https://claude.ai/new";`)
	assert.Contains(t, script, "async function findTab")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(script), strings.TrimSpace(newTabScript)))
}

func TestKernelGet(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		k := newTestKernel(&FakePlaywrightService{
			ExecuteFunc: returning(map[string]any{"found": true, "id": "tab-1", "url": "https://gemini.google.com/app", "status": "complete"}),
		})
		tab, err := k.Get(context.Background(), "tab-1")
		require.NoError(t, err)
		assert.Equal(t, delivery.TabComplete, tab.Status)
	})

	t.Run("closed", func(t *testing.T) {
		k := newTestKernel(&FakePlaywrightService{ExecuteFunc: returning(map[string]any{"found": false})})
		_, err := k.Get(context.Background(), "tab-1")
		assert.ErrorContains(t, err, "not found")
	})
}

func TestKernelExecute(t *testing.T) {
	fake := &FakePlaywrightService{
		ExecuteFunc: returning(map[string]any{"value": map[string]any{"injected": true, "selector": "#prompt-textarea"}}),
	}
	k := newTestKernel(fake)

	raw, err := k.Execute(context.Background(), "tab-1", "(a, b) => a + b", []string{"x"}, "hi \"there\"")
	require.NoError(t, err)
	assert.JSONEq(t, `{"injected":true,"selector":"#prompt-textarea"}`, string(raw))

	expr, err := callExpression("(a, b) => a + b", []any{[]string{"x"}, "hi \"there\""})
	require.NoError(t, err)
	assert.Contains(t, fake.Scripts[0], "process.env.ASKAI_EXPRESSION = "+jsonMarshalString(expr)+";")
}

func TestKernelExecute_ScriptFailure(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error)
		wantErr string
	}{
		{
			name: "transport error",
			fn: func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error) {
				return nil, errors.New("connection reset")
			},
			wantErr: "failed to execute script: connection reset",
		},
		{
			name: "script error",
			fn: func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error) {
				return &kernel.BrowserPlaywrightExecuteResponse{Success: false, Error: "tab tab-1 not found"}, nil
			},
			wantErr: "script failed: tab tab-1 not found",
		},
		{
			name: "script error without message",
			fn: func(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error) {
				return &kernel.BrowserPlaywrightExecuteResponse{Success: false}, nil
			},
			wantErr: "script failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestKernel(&FakePlaywrightService{ExecuteFunc: tt.fn})
			_, err := k.Execute(context.Background(), "tab-1", "() => 1")
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestKernelCaptureVisibleTab(t *testing.T) {
	png := []byte("\x89PNG\r\n")
	k := newTestKernel(&FakePlaywrightService{
		ExecuteFunc: returning(map[string]any{"png": base64.StdEncoding.EncodeToString(png)}),
	})

	got, err := k.CaptureVisibleTab(context.Background(), "tab-1")
	require.NoError(t, err)
	assert.Equal(t, png, got)
}

func TestKernelActive_NoTabs(t *testing.T) {
	k := newTestKernel(&FakePlaywrightService{ExecuteFunc: returning(map[string]any{"found": false})})
	_, err := k.Active(context.Background())
	assert.EqualError(t, err, "no open tabs")
}

func TestBuildScript_SortsEnv(t *testing.T) {
	script := buildScript(map[string]string{"ASKAI_URL": "u", "ASKAI_EXPRESSION": "e"}, "return 1;")
	assert.Less(t, strings.Index(script, "ASKAI_EXPRESSION"), strings.Index(script, "ASKAI_URL"))
	assert.True(t, strings.HasSuffix(script, "return 1;"))
}

func TestCallExpression(t *testing.T) {
	expr, err := callExpression("  (s, n) => s.repeat(n)\n", []any{"ab", 2})
	require.NoError(t, err)
	assert.Equal(t, `((s, n) => s.repeat(n))(...["ab",2])`, expr)

	expr, err = callExpression("() => document.title", nil)
	require.NoError(t, err)
	assert.Equal(t, `(() => document.title)(...[])`, expr)
}

func TestSystem(t *testing.T) {
	var opened []string
	s := &System{open: func(url string) error {
		opened = append(opened, url)
		return nil
	}}

	tab, err := s.Create(context.Background(), "https://chatgpt.com/")
	require.NoError(t, err)
	assert.Empty(t, tab.ID)
	assert.Equal(t, []string{"https://chatgpt.com/"}, opened)

	_, err = s.Active(context.Background())
	assert.ErrorIs(t, err, delivery.ErrUnsupported)
	_, err = s.Execute(context.Background(), "", "() => 1")
	assert.ErrorIs(t, err, delivery.ErrUnsupported)
	_, err = s.CaptureVisibleTab(context.Background(), "")
	assert.ErrorIs(t, err, delivery.ErrUnsupported)
}

func TestSystem_OpenFails(t *testing.T) {
	s := &System{open: func(url string) error { return errors.New("xdg-open not found") }}
	_, err := s.Create(context.Background(), "https://chatgpt.com/")
	assert.ErrorContains(t, err, "xdg-open not found")
}

type fakeTabs struct {
	delivery.Tabs
	result json.RawMessage
	err    error
	args   []any
}

func (f *fakeTabs) Active(ctx context.Context) (delivery.Tab, error) {
	return delivery.Tab{ID: "tab-9"}, nil
}

func (f *fakeTabs) Execute(ctx context.Context, tabID string, fn string, args ...any) (json.RawMessage, error) {
	f.args = args
	return f.result, f.err
}

func TestPageClipboard(t *testing.T) {
	ok := &fakeTabs{result: json.RawMessage("true")}
	require.NoError(t, PageClipboard{Browser: ok}.WriteText(context.Background(), "hello"))
	assert.Equal(t, []any{"hello"}, ok.args)

	refused := &fakeTabs{result: json.RawMessage("false")}
	assert.Error(t, PageClipboard{Browser: refused}.WriteText(context.Background(), "hello"))

	failed := &fakeTabs{err: delivery.ErrUnsupported}
	assert.ErrorIs(t, PageClipboard{Browser: failed}.WriteText(context.Background(), "hello"), delivery.ErrUnsupported)
}
