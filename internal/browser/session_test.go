package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeBrowserService struct {
	NewFunc func(ctx context.Context, body kernel.BrowserNewParams, opts ...option.RequestOption) (*kernel.BrowserNewResponse, error)
	GetFunc func(ctx context.Context, id string, query kernel.BrowserGetParams, opts ...option.RequestOption) (*kernel.BrowserGetResponse, error)
}

func (f *FakeBrowserService) New(ctx context.Context, body kernel.BrowserNewParams, opts ...option.RequestOption) (*kernel.BrowserNewResponse, error) {
	if f.NewFunc != nil {
		return f.NewFunc(ctx, body, opts...)
	}
	return &kernel.BrowserNewResponse{}, nil
}

func (f *FakeBrowserService) Get(ctx context.Context, id string, query kernel.BrowserGetParams, opts ...option.RequestOption) (*kernel.BrowserGetResponse, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, id, query, opts...)
	}
	return nil, errors.New("not found")
}

func fastReady(t *testing.T) {
	t.Helper()
	old := readyDelay
	readyDelay = time.Millisecond
	t.Cleanup(func() { readyDelay = old })
}

func TestEnsureSession_Existing(t *testing.T) {
	fake := &FakeBrowserService{
		GetFunc: func(ctx context.Context, id string, query kernel.BrowserGetParams, opts ...option.RequestOption) (*kernel.BrowserGetResponse, error) {
			return &kernel.BrowserGetResponse{SessionID: id, BrowserLiveViewURL: "https://live.example/" + id}, nil
		},
		NewFunc: func(ctx context.Context, body kernel.BrowserNewParams, opts ...option.RequestOption) (*kernel.BrowserNewResponse, error) {
			t.Fatal("should not create a browser")
			return nil, nil
		},
	}

	s, err := EnsureSession(context.Background(), fake, "abc", SessionOptions{})
	require.NoError(t, err)
	assert.Equal(t, Session{ID: "abc", LiveViewURL: "https://live.example/abc"}, s)
}

func TestEnsureSession_CreatesAndWaits(t *testing.T) {
	fastReady(t)
	gets := 0
	fake := &FakeBrowserService{
		NewFunc: func(ctx context.Context, body kernel.BrowserNewParams, opts ...option.RequestOption) (*kernel.BrowserNewResponse, error) {
			return &kernel.BrowserNewResponse{SessionID: "new-1", BrowserLiveViewURL: "https://live.example/new-1"}, nil
		},
		GetFunc: func(ctx context.Context, id string, query kernel.BrowserGetParams, opts ...option.RequestOption) (*kernel.BrowserGetResponse, error) {
			gets++
			if gets < 3 {
				return nil, errors.New("not found")
			}
			return &kernel.BrowserGetResponse{SessionID: id}, nil
		},
	}

	s, err := EnsureSession(context.Background(), fake, "", SessionOptions{TimeoutSeconds: 300})
	require.NoError(t, err)
	assert.True(t, s.Created)
	assert.Equal(t, "new-1", s.ID)
	assert.Equal(t, 3, gets)
}

func TestEnsureSession_NeverReady(t *testing.T) {
	fastReady(t)
	gets := 0
	fake := &FakeBrowserService{
		NewFunc: func(ctx context.Context, body kernel.BrowserNewParams, opts ...option.RequestOption) (*kernel.BrowserNewResponse, error) {
			return &kernel.BrowserNewResponse{SessionID: "new-1"}, nil
		},
		GetFunc: func(ctx context.Context, id string, query kernel.BrowserGetParams, opts ...option.RequestOption) (*kernel.BrowserGetResponse, error) {
			gets++
			return nil, errors.New("not found")
		},
	}

	_, err := EnsureSession(context.Background(), fake, "", SessionOptions{})
	assert.ErrorContains(t, err, "not accessible after 10 attempts")
	assert.Equal(t, readyAttempts, gets)
}
