package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kernel/askai/internal/storage"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *storage.Memory, *storage.Memory) {
	t.Helper()
	syncArea := storage.NewMemory(storage.AreaSync)
	localArea := storage.NewMemory(storage.AreaLocal)
	n := 0
	opts = append([]Option{
		WithDebounce(40 * time.Millisecond),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("custom-%d", n)
		}),
	}, opts...)
	return NewStore(syncArea, localArea, opts...), syncArea, localArea
}

func TestGetSettings_DefaultsWhenEmpty(t *testing.T) {
	store, _, _ := newTestStore(t)
	assert.Equal(t, Defaults(), store.GetSettings(context.Background()))
}

func TestGetSettings_SyncFailsFallsBackToLocal(t *testing.T) {
	store, syncArea, localArea := newTestStore(t)
	syncArea.GetErr = storage.ErrUnavailable
	localArea.Put(KeyAutoSend, json.RawMessage("false"))

	want := Defaults()
	want.AutoSend = false
	assert.Equal(t, want, store.GetSettings(context.Background()))
}

func TestGetSettings_BothFailReturnsDefaults(t *testing.T) {
	store, syncArea, localArea := newTestStore(t)
	syncArea.GetErr = storage.ErrUnavailable
	localArea.GetErr = storage.ErrQuotaExceeded

	assert.Equal(t, Defaults(), store.GetSettings(context.Background()))
}

func TestGetSettings_MergesKeyByKey(t *testing.T) {
	store, syncArea, _ := newTestStore(t)
	syncArea.Put(KeyDefaultPlatform, json.RawMessage(`"claude"`))
	syncArea.Put(KeyDarkMode, json.RawMessage(`"yes"`))
	syncArea.Put(KeyMaxTextLength, json.RawMessage(`50`))
	syncArea.Put("legacyTheme", json.RawMessage(`"blue"`))

	got := store.GetSettings(context.Background())
	assert.Equal(t, "claude", got.DefaultPlatform)
	assert.False(t, got.DarkMode, "undecodable values keep their default")
	assert.Equal(t, MinTextLength, got.MaxTextLength)
	assert.Equal(t, Defaults().DefaultModel, got.DefaultModel)
}

func TestSaveSettings_CollapsesToLastPatch(t *testing.T) {
	store, syncArea, _ := newTestStore(t)

	for i := 1; i <= 5; i++ {
		store.SaveSettings(Patch{DefaultInstructions: lo.ToPtr(fmt.Sprintf("draft %d", i))})
	}

	require.Eventually(t, func() bool { return len(syncArea.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	writes := syncArea.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, map[string]json.RawMessage{
		KeyDefaultInstructions: json.RawMessage(`"draft 5"`),
	}, writes[0])
}

// Patches inside one window are not merged: a field set only by an earlier
// call is lost.
func TestSaveSettings_DiscardsEarlierPatchKeys(t *testing.T) {
	store, syncArea, _ := newTestStore(t)

	store.SaveSettings(Patch{AutoSend: lo.ToPtr(false)})
	store.SaveSettings(Patch{DarkMode: lo.ToPtr(true)})

	require.Eventually(t, func() bool { return len(syncArea.Writes()) == 1 }, time.Second, 5*time.Millisecond)

	got := store.GetSettings(context.Background())
	assert.True(t, got.DarkMode)
	assert.True(t, got.AutoSend, "autoSend change from the first call is dropped")
}

func TestSaveSettings_FallsBackToLocal(t *testing.T) {
	store, syncArea, localArea := newTestStore(t)
	syncArea.SetErr = storage.ErrQuotaExceeded

	store.SaveSettings(Patch{DarkMode: lo.ToPtr(true)})

	require.Eventually(t, func() bool { return len(localArea.Writes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, syncArea.Writes())
}

func TestSaveSettings_BothFailIsSilent(t *testing.T) {
	store, syncArea, localArea := newTestStore(t)
	syncArea.SetErr = storage.ErrUnavailable
	localArea.SetErr = storage.ErrUnavailable

	store.SaveSettings(Patch{DarkMode: lo.ToPtr(true)})
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, syncArea.Writes())
	assert.Empty(t, localArea.Writes())
	assert.Error(t, store.SaveCustomPlatforms(context.Background(), nil))
}

func TestFlush_WritesPendingImmediately(t *testing.T) {
	store, syncArea, _ := newTestStore(t, WithDebounce(time.Hour))

	store.SaveSettings(Patch{DefaultPlatform: lo.ToPtr("gemini")})
	assert.Empty(t, syncArea.Writes())

	require.NoError(t, store.Flush(context.Background()))
	require.Len(t, syncArea.Writes(), 1)
	assert.Equal(t, "gemini", store.GetSettings(context.Background()).DefaultPlatform)

	// Nothing pending any more.
	require.NoError(t, store.Flush(context.Background()))
	assert.Len(t, syncArea.Writes(), 1)
}

// A timer that fired just before a newer SaveSettings took the lock must not
// write the newer patch early.
func TestSaveSettings_StaleTimerDoesNotFlush(t *testing.T) {
	ctx := context.Background()
	store, syncArea, _ := newTestStore(t, WithDebounce(time.Hour))

	store.SaveSettings(Patch{DarkMode: lo.ToPtr(true)})
	stale := store.gen
	store.SaveSettings(Patch{DefaultModel: lo.ToPtr("gpt-4.1")})

	require.NoError(t, store.flush(ctx, stale))
	assert.Empty(t, syncArea.Writes())

	require.NoError(t, store.flush(ctx, store.gen))
	writes := syncArea.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, map[string]json.RawMessage{KeyDefaultModel: json.RawMessage(`"gpt-4.1"`)}, writes[0])
}

func TestResetSettings_ClearsBothAndSwallowsErrors(t *testing.T) {
	ctx := context.Background()
	store, syncArea, localArea := newTestStore(t, WithDebounce(time.Hour))
	syncArea.Put(KeyDarkMode, json.RawMessage("true"))
	localArea.Put(KeyDarkMode, json.RawMessage("true"))
	store.SaveSettings(Patch{AutoSend: lo.ToPtr(false)})

	store.ResetSettings(ctx)

	assert.Equal(t, Defaults(), store.GetSettings(ctx))
	require.NoError(t, store.Flush(ctx))
	assert.Empty(t, syncArea.Writes(), "reset drops the pending save")

	syncArea.ClearErr = storage.ErrUnavailable
	localArea.ClearErr = storage.ErrUnavailable
	assert.NotPanics(t, func() { store.ResetSettings(ctx) })
}

func TestOnSettingsChanged(t *testing.T) {
	ctx := context.Background()
	store, syncArea, localArea := newTestStore(t)

	var mu sync.Mutex
	var got []Patch
	stop := store.OnSettingsChanged(func(p Patch) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, p)
	})

	require.NoError(t, syncArea.Set(ctx, map[string]json.RawMessage{
		KeyDarkMode:     json.RawMessage("true"),
		"somethingElse": json.RawMessage(`"x"`),
	}))
	// Only unknown keys: not reported.
	require.NoError(t, localArea.Set(ctx, map[string]json.RawMessage{"somethingElse": json.RawMessage(`"y"`)}))
	// Removal reports the default.
	require.NoError(t, syncArea.Clear(ctx))

	stop()
	require.NoError(t, syncArea.Set(ctx, map[string]json.RawMessage{KeyAutoSend: json.RawMessage("false")}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, []string{KeyDarkMode}, got[0].Keys())
	assert.True(t, *got[0].DarkMode)
	assert.Equal(t, []string{KeyDarkMode}, got[1].Keys())
	assert.False(t, *got[1].DarkMode)
}

func TestDefaultsPatchSetsEveryKey(t *testing.T) {
	p := Defaults().patch()
	assert.Equal(t, SettingsKeys, p.Keys())
	assert.Equal(t, Defaults(), p.Apply(ExtensionSettings{}))
	assert.Equal(t, json.RawMessage(`16384`), p.items()[KeyMaxTextLength])
}

func TestCustomPlatforms_AddRemoveUpdate(t *testing.T) {
	ctx := context.Background()
	store, syncArea, _ := newTestStore(t)

	a, err := store.AddCustomPlatform(ctx, NewCustomPlatform{Name: "Mistral", Icon: "M", URL: "https://chat.mistral.ai/chat"})
	require.NoError(t, err)
	b, err := store.AddCustomPlatform(ctx, NewCustomPlatform{Name: "Perplexity", Icon: "P", URL: "https://www.perplexity.ai/"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, syncArea.Writes(), 2, "custom platform writes are not debounced")

	list := store.GetCustomPlatforms(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, "Mistral", list[0].Name)
	assert.Equal(t, "Perplexity", list[1].Name)

	require.NoError(t, store.UpdateCustomPlatform(ctx, b.ID, CustomPlatformPatch{Name: lo.ToPtr("Perplexity Pro")}))
	require.NoError(t, store.UpdateCustomPlatform(ctx, "custom-missing", CustomPlatformPatch{Name: lo.ToPtr("nope")}))
	list = store.GetCustomPlatforms(ctx)
	assert.Equal(t, "Perplexity Pro", list[1].Name)
	assert.Equal(t, "https://www.perplexity.ai/", list[1].URL)
	assert.Equal(t, b.ID, list[1].ID)

	writes := len(syncArea.Writes())
	require.NoError(t, store.RemoveCustomPlatform(ctx, "custom-missing"))
	assert.Len(t, syncArea.Writes(), writes)

	require.NoError(t, store.RemoveCustomPlatform(ctx, a.ID))
	list = store.GetCustomPlatforms(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestCustomPlatforms_FallBackToLocal(t *testing.T) {
	ctx := context.Background()
	store, syncArea, localArea := newTestStore(t)
	syncArea.GetErr = storage.ErrUnavailable
	syncArea.SetErr = storage.ErrUnavailable

	_, err := store.AddCustomPlatform(ctx, NewCustomPlatform{Name: "Local", URL: "http://localhost:3000"})
	require.NoError(t, err)
	assert.Len(t, localArea.Writes(), 1)
	assert.Len(t, store.GetCustomPlatforms(ctx), 1)
}

func TestCustomPlatforms_UnreadableListIsEmpty(t *testing.T) {
	store, syncArea, _ := newTestStore(t)
	syncArea.Put(KeyCustomPlatforms, json.RawMessage(`{"not":"a list"}`))
	assert.Empty(t, store.GetCustomPlatforms(context.Background()))
}

func TestNewCustomPlatformID(t *testing.T) {
	a, b := newCustomPlatformID(), newCustomPlatformID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^custom-[0-9a-f-]{36}$`, a)
}
