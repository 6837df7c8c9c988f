package presence

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

// TestRegistry_ConnectDistinctUsers は個別ユーザーの接続後のオンライン集合が
// 接続済みユーザーの集合と一致することを検証する。
func TestRegistry_ConnectDistinctUsers(t *testing.T) {
	r := NewRegistry()

	online, changed := r.Connect("user-a", "c1")
	if !changed {
		t.Fatal("expected presence map to change")
	}
	if !reflect.DeepEqual(online, []string{"user-a"}) {
		t.Errorf("online = %v, want [user-a]", online)
	}

	online, changed = r.Connect("user-b", "c2")
	if !changed {
		t.Fatal("expected presence map to change")
	}
	if !reflect.DeepEqual(online, []string{"user-a", "user-b"}) {
		t.Errorf("online = %v, want [user-a user-b]", online)
	}
}

// TestRegistry_AnonymousConnection は匿名コネクションが記録されないことを検証する。
func TestRegistry_AnonymousConnection(t *testing.T) {
	r := NewRegistry()

	online, changed := r.Connect("", "c1")
	if changed {
		t.Error("anonymous connection must not change the presence map")
	}
	if online != nil {
		t.Errorf("online = %v, want nil", online)
	}
	if r.Count() != 0 {
		t.Errorf("count = %d, want 0", r.Count())
	}
}

// TestRegistry_LastConnectionWins は同一ユーザーの2回目の接続（2タブ目）で
// エントリが1つのまま最新のコネクションIDに置き換わることを検証する。
func TestRegistry_LastConnectionWins(t *testing.T) {
	r := NewRegistry()

	r.Connect("user-a", "c1")
	online, changed := r.Connect("user-a", "c2")
	if !changed {
		t.Fatal("expected presence map to change")
	}
	if !reflect.DeepEqual(online, []string{"user-a"}) {
		t.Errorf("online = %v, want [user-a]", online)
	}

	connID, ok := r.ConnectionID("user-a")
	if !ok {
		t.Fatal("user-a should be online")
	}
	if connID != "c2" {
		t.Errorf("connectionID = %q, want %q", connID, "c2")
	}
}

// TestRegistry_GuardedDisconnect は古いコネクションの遅延切断イベントが
// 新しいコネクションのエントリを消さないことを検証する。
func TestRegistry_GuardedDisconnect(t *testing.T) {
	r := NewRegistry()

	r.Connect("user-a", "c1")
	r.Connect("user-a", "c2")

	online, removed := r.Disconnect("user-a", "c1")
	if removed {
		t.Error("stale disconnect must be a no-op")
	}
	if !reflect.DeepEqual(online, []string{"user-a"}) {
		t.Errorf("online = %v, want [user-a]", online)
	}
	if !r.IsOnline("user-a") {
		t.Error("user-a must still be online after stale disconnect")
	}

	// 現在のコネクションの切断は削除される
	online, removed = r.Disconnect("user-a", "c2")
	if !removed {
		t.Error("current-connection disconnect must remove the entry")
	}
	if len(online) != 0 {
		t.Errorf("online = %v, want empty", online)
	}
}

// TestRegistry_DisconnectUnknownUser は未登録ユーザーの切断がno-opであることを検証する。
func TestRegistry_DisconnectUnknownUser(t *testing.T) {
	r := NewRegistry()
	r.Connect("user-a", "c1")

	online, removed := r.Disconnect("user-b", "c9")
	if removed {
		t.Error("disconnect of unknown user must be a no-op")
	}
	if !reflect.DeepEqual(online, []string{"user-a"}) {
		t.Errorf("online = %v, want [user-a]", online)
	}
}

// TestRegistry_EndToEndScenario は接続・切断シーケンス全体でオンライン集合が
// 期待通りに遷移することを検証する。
func TestRegistry_EndToEndScenario(t *testing.T) {
	r := NewRegistry()

	online, _ := r.Connect("A", "c1")
	if !reflect.DeepEqual(online, []string{"A"}) {
		t.Errorf("after connect(A): online = %v, want [A]", online)
	}

	online, _ = r.Connect("B", "c2")
	if !reflect.DeepEqual(online, []string{"A", "B"}) {
		t.Errorf("after connect(B): online = %v, want [A B]", online)
	}

	online, _ = r.Disconnect("A", "c1")
	if !reflect.DeepEqual(online, []string{"B"}) {
		t.Errorf("after disconnect(A): online = %v, want [B]", online)
	}

	online, _ = r.Disconnect("B", "c2")
	if len(online) != 0 {
		t.Errorf("after disconnect(B): online = %v, want empty", online)
	}
}

// TestRegistry_SnapshotRoundTrip はブロードキャストペイロードの
// シリアライズ・再パースで同じ識別子集合が得られることを検証する。
func TestRegistry_SnapshotRoundTrip(t *testing.T) {
	r := NewRegistry()
	r.Connect("user-a", "c1")
	r.Connect("user-b", "c2")
	r.Connect("user-c", "c3")

	payload, err := json.Marshal(r.Online())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded []string
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(decoded, []string{"user-a", "user-b", "user-c"}) {
		t.Errorf("decoded = %v, want [user-a user-b user-c]", decoded)
	}
}

// TestRegistry_ConcurrentEvents は多数のコネクションから同時にイベントが
// 届いても整合した状態に収束することを検証する（-race併用を想定）。
func TestRegistry_ConcurrentEvents(t *testing.T) {
	r := NewRegistry()

	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("user-%03d", i)
			connID := fmt.Sprintf("conn-%03d", i)
			r.Connect(userID, connID)
			if i%2 == 0 {
				r.Disconnect(userID, connID)
			}
		}(i)
	}
	wg.Wait()

	online := r.Online()
	if len(online) != users/2 {
		t.Errorf("online count = %d, want %d", len(online), users/2)
	}
	for _, id := range online {
		if !r.IsOnline(id) {
			t.Errorf("user %s reported in snapshot but not online", id)
		}
	}
}
