package common

import (
	"errors"
	"slices"

	"github.com/aws/smithy-go"
)

// エラーメッセージの絵文字定数
const (
	ErrorIcon   = "❌"
	SuccessIcon = "✅"
	WarningIcon = "⚠️"
	SearchIcon  = "🔍"
	InfoIcon    = "📋"
	ProcessIcon = "🔄"
	PartyIcon   = "🎉"
	SkipIcon    = "⏭️"
)

// エラーメッセージフォーマット定数
const (
	// 一覧取得エラー
	ListErrorFormat = "%s %s一覧の取得に失敗: %w"

	// 処理中メッセージ
	ProcessingFormat = "%s %s を処理中..."
)

// APIErrorCode はAWS APIエラーのエラーコードを返す。APIエラーでなければ空文字
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsAPIErrorCode はエラーが指定したいずれかのAWSエラーコードかどうかを判定する
func IsAPIErrorCode(err error, codes ...string) bool {
	code := APIErrorCode(err)
	return code != "" && slices.Contains(codes, code)
}
