package platform

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// permissionBridge answers check with status and, on request, either emits a
// change event with answer or stays silent.
type permissionBridge struct {
	mu       sync.Mutex
	status   PermissionResult
	answer   PermissionResult
	silent   bool
	requests int
}

func (b *permissionBridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	var m map[string]any
	json.Unmarshal(args, &m)
	name, _ := m["permission"].(string)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch method {
	case "check":
		return DefaultCodec.Encode(map[string]any{"status": string(b.status)})
	case "request":
		b.requests++
		if !b.silent {
			b.status = b.answer
			data, _ := json.Marshal(map[string]any{"permission": name, "status": string(b.answer)})
			go HandleEvent(permissionChangesChannelName, data)
		}
		return DefaultCodec.Encode(nil)
	case "openSettings":
		return DefaultCodec.Encode(nil)
	}
	return nil, ErrMethodNotFound
}

func (b *permissionBridge) StartEventStream(string) error { return nil }
func (b *permissionBridge) StopEventStream(string) error  { return nil }

func TestPermissionStatus(t *testing.T) {
	SetupTestBridge(t.Cleanup, &permissionBridge{status: PermissionDenied})

	status, err := Location.Permission.WhenInUse.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != PermissionDenied {
		t.Errorf("status = %q, want %q", status, PermissionDenied)
	}
	if !Location.Permission.WhenInUse.IsDenied(context.Background()) {
		t.Error("IsDenied = false, want true")
	}
	if Location.Permission.WhenInUse.IsGranted(context.Background()) {
		t.Error("IsGranted = true, want false")
	}
}

func TestPermissionRequestWaitsForChange(t *testing.T) {
	bridge := &permissionBridge{status: PermissionNotDetermined, answer: PermissionGranted}
	SetupTestBridge(t.Cleanup, bridge)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := newPermission("location").Request(ctx)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if status != PermissionGranted {
		t.Errorf("status = %q, want %q", status, PermissionGranted)
	}
	if bridge.requests != 1 {
		t.Errorf("requests = %d, want 1", bridge.requests)
	}
}

func TestPermissionRequestTerminalSkipsDialog(t *testing.T) {
	bridge := &permissionBridge{status: PermissionPermanentlyDenied}
	SetupTestBridge(t.Cleanup, bridge)

	status, err := newPermission("location").Request(context.Background())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if status != PermissionPermanentlyDenied {
		t.Errorf("status = %q, want %q", status, PermissionPermanentlyDenied)
	}
	if bridge.requests != 0 {
		t.Errorf("requests = %d, want 0", bridge.requests)
	}
}

func TestPermissionRequestTimeout(t *testing.T) {
	SetupTestBridge(t.Cleanup, &permissionBridge{status: PermissionNotDetermined, silent: true})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	status, err := newPermission("location").Request(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if status != PermissionResultUnknown {
		t.Errorf("status = %q, want %q", status, PermissionResultUnknown)
	}
}

func TestPermissionListenFiltersByName(t *testing.T) {
	SetupTestBridge(t.Cleanup, nil)

	var got []PermissionStatus
	unsubscribe := Location.Permission.Always.Listen(func(s PermissionStatus) {
		got = append(got, s)
	})
	defer unsubscribe()

	for _, ev := range []map[string]any{
		{"permission": "location", "status": "granted"},
		{"permission": "location_always", "status": "denied"},
	} {
		data, _ := json.Marshal(ev)
		if err := HandleEvent(permissionChangesChannelName, data); err != nil {
			t.Fatalf("HandleEvent: %v", err)
		}
	}

	if len(got) != 1 || got[0] != PermissionDenied {
		t.Errorf("got %v, want [denied]", got)
	}
}

func TestParsePermissionResult(t *testing.T) {
	if got := parsePermissionResult(map[string]any{"status": "restricted"}); got != PermissionRestricted {
		t.Errorf("got %q, want restricted", got)
	}
	if got := parsePermissionResult(nil); got != PermissionResultUnknown {
		t.Errorf("got %q, want unknown", got)
	}
	if _, err := parsePermissionChange("nope"); err == nil {
		t.Error("expected parse error for non-map payload")
	}
}

func TestOpenAppSettings(t *testing.T) {
	SetupTestBridge(t.Cleanup, &permissionBridge{})
	if err := OpenAppSettings(context.Background()); err != nil {
		t.Errorf("OpenAppSettings: %v", err)
	}
}
