package schedule

import "fmt"

// PreflightError は変更前の事前チェックで検出された致命的なエラー
type PreflightError struct {
	Step string
	Err  error
}

func (e *PreflightError) Error() string {
	return fmt.Sprintf("事前チェック失敗 [%s]: %v", e.Step, e.Err)
}

func (e *PreflightError) Unwrap() error { return e.Err }

// NewPreflightError はPreflightErrorを生成する
func NewPreflightError(step string, err error) error {
	return &PreflightError{Step: step, Err: err}
}

// RemoteAPIError はオブジェクト単位のAWS API呼び出しの失敗
type RemoteAPIError struct {
	Op     Op
	Object ObjectType
	Name   string
	Err    error
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("%s %s の%sに失敗: %v", e.Object, e.Name, e.Op.Label(), e.Err)
}

func (e *RemoteAPIError) Unwrap() error { return e.Err }
