// Package presence はオンラインユーザーのプレゼンス管理を提供する。
//
// Registry はユーザーIDから現在そのユーザーを代表するコネクションIDへの
// マッピング（プレゼンスマップ）を唯一所有する。マップの変更は
// Connect / Disconnect のみを通じて行われ、ハンドラー等から直接
// 変更されることはない。
package presence

import (
	"sort"
	"sync"
)

// Registry はプレゼンスマップを管理する。
// プロセス起動時に1インスタンスを生成し、参照で配布して使用する。
//
// 同時に複数コネクションのイベントが届くため、マップの変更と
// ブロードキャスト用スナップショットの取得は単一のミューテックスで
// 直列化する。スナップショットはロック保持中に取得するので、
// 半更新状態のオンライン集合が配信されることはない。
type Registry struct {
	mu      sync.Mutex
	entries map[string]string // userID → connectionID
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]string),
	}
}

// Connect はユーザーのコネクション確立を記録し、更新後のオンライン
// ユーザーID一覧（ソート済み）と、マップが変更されたかを返す。
//
// 同一ユーザーの既存エントリは新しいコネクションIDで上書きする
// （last-connection-wins: 2つ目のタブを開くと1つ目のタブの
// エントリが置き換わる。古いタブのトランスポート接続自体は閉じない）。
// userIDが空（匿名コネクション）の場合は何も記録せずfalseを返す。
func (r *Registry) Connect(userID, connectionID string) ([]string, bool) {
	if userID == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[userID] = connectionID
	return r.snapshotLocked(), true
}

// Disconnect はユーザーのコネクション切断を記録し、更新後のオンライン
// ユーザーID一覧（ソート済み）と、エントリが削除されたかを返す。
//
// 記録中のコネクションIDがconnectionIDと一致する場合のみ削除する。
// 一致しない場合（新しいコネクションの登録後に古いコネクションの
// 切断イベントが遅れて届いた場合）は何もしない。このガードにより、
// 順序が入れ替わった切断イベントが生存中のエントリを消すことを防ぐ。
func (r *Registry) Disconnect(userID, connectionID string) ([]string, bool) {
	if userID == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.entries[userID]
	if !ok || current != connectionID {
		return r.snapshotLocked(), false
	}

	delete(r.entries, userID)
	return r.snapshotLocked(), true
}

// Online は現在のオンラインユーザーID一覧をソート済みで返す。
func (r *Registry) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// IsOnline は指定ユーザーがオンラインかを返す。
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[userID]
	return ok
}

// ConnectionID は指定ユーザーを現在代表しているコネクションIDを返す。
// ダイレクトメッセージの宛先解決に使用する。
func (r *Registry) ConnectionID(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connID, ok := r.entries[userID]
	return connID, ok
}

// Count は現在のオンラインユーザー数を返す。メトリクス用。
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// snapshotLocked はオンラインユーザーIDのソート済みコピーを返す。
// 呼び出し側がr.muを保持していること。
func (r *Registry) snapshotLocked() []string {
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
