package schedule

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"awssched/internal/service/common"
)

// Report は1回の実行結果の集計
type Report struct {
	mu sync.Mutex

	DryRun    bool
	Created   int
	Updated   int
	Unchanged int
	Deleted   int
	Skipped   int
	Failed    int
	Errors    []error
}

func (r *Report) record(intent Intent, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, err)
		return
	}
	switch intent.Op {
	case OpCreate, OpAttach:
		r.Created++
	case OpUpdate:
		r.Updated++
	case OpDelete, OpDetach:
		r.Deleted++
	default:
		r.Unchanged++
	}
}

func (r *Report) skip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped++
}

// Err は失敗したオブジェクトのエラーをまとめて返す。失敗がなければnil
func (r *Report) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.Errors...)
}

// Changed は変更が1件以上あったかどうか
func (r *Report) Changed() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// Print は集計結果を表示する
func (r *Report) Print(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.DryRun {
		fmt.Fprintf(w, "%s ドライランのため変更は行っていません\n", common.InfoIcon)
		return
	}

	icon := common.SuccessIcon
	if r.Failed > 0 {
		icon = common.ErrorIcon
	}
	fmt.Fprintf(w, "%s 作成: %d / 更新: %d / 削除: %d / 変更なし: %d / スキップ: %d / 失敗: %d\n",
		icon, r.Created, r.Updated, r.Deleted, r.Unchanged, r.Skipped, r.Failed)

	if r.Failed == 0 && r.Created+r.Updated+r.Deleted == 0 {
		fmt.Fprintf(w, "%s 変更はありません。既に希望の状態です\n", common.PartyIcon)
	}
	for _, err := range r.Errors {
		fmt.Fprintf(w, "   %s %v\n", common.ErrorIcon, err)
	}
}
