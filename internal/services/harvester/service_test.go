package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colloquy/internal/common"
	"github.com/ternarybob/colloquy/internal/httpclient"
	"github.com/ternarybob/colloquy/internal/interfaces"
	"github.com/ternarybob/colloquy/internal/models"
	"github.com/ternarybob/colloquy/internal/services/state"
)

const testToken = "test-bearer-token"

// platformFixture is a fake chat platform backend
type platformFixture struct {
	server           *httptest.Server
	loggedOut        bool
	emptyIndexBody   bool
	failConvIDs      map[string]bool
	malformedConvIDs map[string]bool
	indexIDs         []string
	convFetches      atomic.Int64
	authFailures     atomic.Int64
	conversations    map[string]*models.ChatGPTConversation
}

func newPlatformFixture(t *testing.T) *platformFixture {
	t.Helper()

	f := &platformFixture{
		failConvIDs:      make(map[string]bool),
		malformedConvIDs: make(map[string]bool),
		conversations:    make(map[string]*models.ChatGPTConversation),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if f.loggedOut {
			fmt.Fprint(w, `<html><body><a href="/login">Log in</a></body></html>`)
			return
		}
		fmt.Fprintf(w, "<html><head><script>\n{\"accessToken\":\"%s\",\"expires\":\"never\"}\n</script></head></html>", testToken)
	})

	mux.HandleFunc("/backend-api/conversations", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			f.authFailures.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.emptyIndexBody {
			fmt.Fprint(w, `{}`)
			return
		}
		items := make([]models.ChatGPTIndexItem, 0, len(f.indexIDs))
		for _, id := range f.indexIDs {
			items = append(items, models.ChatGPTIndexItem{ID: id, Title: "conv " + id})
		}
		json.NewEncoder(w).Encode(models.ChatGPTIndexResponse{
			Items:  items,
			Total:  len(items),
			Limit:  28,
			Offset: 0,
		})
	})

	mux.HandleFunc("/backend-api/conversation/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(r) {
			f.authFailures.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.convFetches.Add(1)
		id := r.URL.Path[len("/backend-api/conversation/"):]
		if f.failConvIDs[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if f.malformedConvIDs[id] {
			fmt.Fprintf(w, `{"conversation_id":%q,"title":"broken","mapping":{}}`, id)
			return
		}
		doc, ok := f.conversations[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(doc)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *platformFixture) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+testToken
}

func (f *platformFixture) addConversation(id string, createTime float64) {
	f.indexIDs = append(f.indexIDs, id)
	f.conversations[id] = &models.ChatGPTConversation{
		ConversationID: id,
		Title:          "conv " + id,
		CreateTime:     createTime,
		UpdateTime:     createTime + 100,
		Mapping: map[string]models.ChatGPTNode{
			rootNodeID: {ID: rootNodeID, Children: []string{"u"}},
			"u":        {ID: "u", Parent: rootNodeID, Children: []string{"a"}, Message: textMessage("msg-u-"+id, "user", createTime+10, "question")},
			"a":        {ID: "a", Parent: "u", Message: textMessage("msg-a-"+id, "assistant", createTime+20, "answer")},
		},
	}
}

func newTestService(t *testing.T, f *platformFixture) (*Service, *captureBus, *state.Service) {
	t.Helper()
	return newTestServiceWithKV(t, f, newMemoryKV())
}

func newTestServiceWithKV(t *testing.T, f *platformFixture, kv interfaces.KeyValueStorage) (*Service, *captureBus, *state.Service) {
	t.Helper()

	config := &common.HarvesterConfig{
		BaseURL:           f.server.URL,
		SyncPeriod:        time.Minute,
		RequestDelay:      time.Millisecond,
		RequestTimeout:    5 * time.Second,
		PageSize:          28,
		RequestsPerSecond: 1000,
	}

	baseClient, err := httpclient.NewThrottledClient(config.RequestTimeout, config.RequestsPerSecond, "colloquy-test")
	require.NoError(t, err)

	logger := testLogger()
	stateService := state.NewService(kv, logger)
	bus := newCaptureBus()

	apiClient := NewAPIClient(baseClient, config.BaseURL, config.PageSize, logger)
	gate := NewSyncGate(stateService, ComponentName, config.SyncPeriod, logger)
	detector := NewChangeDetector(stateService, bus, logger)

	return NewService(config, apiClient, gate, detector, bus, logger), bus, stateService
}

func TestService_ProbeLoginPresence(t *testing.T) {
	f := newPlatformFixture(t)
	service, _, _ := newTestService(t, f)

	assert.True(t, service.ProbeLoginPresence(context.Background()))

	f.loggedOut = true
	assert.False(t, service.ProbeLoginPresence(context.Background()))
}

func TestService_CleanCycleEmitsAndCompletes(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)
	f.addConversation("c2", 1700001000)

	service, bus, _ := newTestService(t, f)

	needsUpdate := service.ProbeNeedsSync(context.Background())
	assert.False(t, needsUpdate, "clean full completion signals no immediate retry")

	captured := bus.captured(interfaces.EventConversationCaptured)
	require.Len(t, captured, 2)
	assert.Len(t, bus.captured(interfaces.EventSyncCompleted), 1)
	assert.Equal(t, int64(2), f.convFetches.Load())
	assert.Equal(t, int64(0), f.authFailures.Load())
}

func TestService_SecondCycleSuppressesUnchanged(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)

	service, bus, stateService := newTestService(t, f)
	ctx := context.Background()

	require.False(t, service.ProbeNeedsSync(ctx))
	require.Len(t, bus.captured(interfaces.EventConversationCaptured), 1)

	// Reset the sync period so the gate lets a second cycle through
	require.NoError(t, stateService.SetLastSync(ctx, ComponentName, time.Now().Add(-2*time.Minute)))

	assert.False(t, service.ProbeNeedsSync(ctx))
	assert.Len(t, bus.captured(interfaces.EventConversationCaptured), 1, "unchanged conversation must not re-emit")
}

func TestService_AbortsQueueOnFailure(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)
	f.addConversation("c2", 1700001000)
	f.addConversation("c3", 1700002000)
	f.failConvIDs["c2"] = true

	service, bus, _ := newTestService(t, f)

	needsUpdate := service.ProbeNeedsSync(context.Background())
	assert.True(t, needsUpdate, "failed drain signals fallback")

	// First conversation already emitted, not rolled back; third never fetched
	captured := bus.captured(interfaces.EventConversationCaptured)
	require.Len(t, captured, 1)
	payload := captured[0].Payload.(*models.ConversationEvent)
	assert.Equal(t, "c1", payload.Conversation.ID)
	assert.Equal(t, int64(2), f.convFetches.Load())
	assert.Empty(t, bus.captured(interfaces.EventSyncCompleted))

	// Gate released even on the failure path
	require.False(t, service.gate.Busy())
}

func TestService_AbortsOnIndexWithoutItems(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)
	f.emptyIndexBody = true

	service, bus, _ := newTestService(t, f)

	assert.True(t, service.ProbeNeedsSync(context.Background()), "success status without an items array signals fallback")
	assert.Empty(t, bus.captured(interfaces.EventConversationCaptured))
	assert.Equal(t, int64(0), f.convFetches.Load(), "queue never drains when the index body is unusable")
	assert.False(t, service.gate.Busy())
}

func TestService_AbortsOnMappinglessConversation(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)
	f.addConversation("c2", 1700001000)
	f.addConversation("c3", 1700002000)
	f.malformedConvIDs["c2"] = true

	service, bus, _ := newTestService(t, f)

	assert.True(t, service.ProbeNeedsSync(context.Background()), "success status with an empty mapping signals fallback")

	captured := bus.captured(interfaces.EventConversationCaptured)
	require.Len(t, captured, 1, "emission before the malformed document survives")
	payload := captured[0].Payload.(*models.ConversationEvent)
	assert.Equal(t, "c1", payload.Conversation.ID)
	assert.Equal(t, int64(2), f.convFetches.Load(), "drain stops at the malformed document")
	assert.False(t, service.gate.Busy())
}

func TestService_MissingCredentialAbortsCycle(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)
	f.loggedOut = true

	service, bus, _ := newTestService(t, f)

	assert.True(t, service.ProbeNeedsSync(context.Background()), "missing credential signals retry-soon")
	assert.Empty(t, bus.captured(interfaces.EventConversationCaptured))
	assert.Equal(t, int64(0), f.convFetches.Load())
	assert.False(t, service.gate.Busy())
}

func TestService_IndexDuplicatesQueuedOnce(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)
	f.indexIDs = append(f.indexIDs, "c1") // Duplicate index entry

	service, bus, _ := newTestService(t, f)

	assert.False(t, service.ProbeNeedsSync(context.Background()))
	assert.Equal(t, int64(1), f.convFetches.Load(), "duplicate id must be fetched once")
	assert.Len(t, bus.captured(interfaces.EventConversationCaptured), 1)
}

// watermarkFailKV fails writes to watermark keys, leaving everything else
// intact, to simulate a storage fault after a successful publish
type watermarkFailKV struct {
	*memoryKV
}

func (w *watermarkFailKV) Set(ctx context.Context, key string, value string, description string) error {
	if strings.HasSuffix(key, "-last-update") {
		return fmt.Errorf("storage write refused")
	}
	return w.memoryKV.Set(ctx, key, value, description)
}

func TestService_CountsEmissionWhenWatermarkWriteFails(t *testing.T) {
	f := newPlatformFixture(t)
	f.addConversation("c1", 1700000000)

	service, bus, _ := newTestServiceWithKV(t, f, &watermarkFailKV{memoryKV: newMemoryKV()})

	emitted, err := service.runCycle(context.Background(), "test-cycle")
	require.Error(t, err)
	assert.Equal(t, 1, emitted, "the published conversation counts even though its watermark write failed")
	assert.Len(t, bus.captured(interfaces.EventConversationCaptured), 1)
}

func TestService_BusyGateSkips(t *testing.T) {
	f := newPlatformFixture(t)
	service, _, _ := newTestService(t, f)

	service.gate.mu.Lock()
	service.gate.busy = true
	service.gate.mu.Unlock()

	assert.True(t, service.ProbeNeedsSync(context.Background()), "busy worker signals try-later")
	assert.Equal(t, int64(0), f.convFetches.Load())
}
